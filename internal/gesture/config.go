package gesture

import "time"

// Config holds the tuning knobs of the drag controller. Distances are in
// the same units as the pointer samples (points on the client).
type Config struct {
	CardWidth         float64       `yaml:"card_width"`
	CardHeight        float64       `yaml:"card_height"`
	CommitFraction    float64       `yaml:"commit_fraction"`    // of the card dimension on the dragged axis
	VelocityThreshold float64       `yaml:"velocity_threshold"` // units per second
	MaxRotation       float64       `yaml:"max_rotation"`       // degrees
	ExitDuration      time.Duration `yaml:"exit_duration"`
	SpringDuration    time.Duration `yaml:"spring_duration"`
}

// DefaultConfig returns the tuning used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		CardWidth:         360,
		CardHeight:        540,
		CommitFraction:    0.25,
		VelocityThreshold: 800,
		MaxRotation:       15,
		ExitDuration:      250 * time.Millisecond,
		SpringDuration:    200 * time.Millisecond,
	}
}

// WithDefaults fills every non-positive field from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.CardWidth <= 0 {
		c.CardWidth = def.CardWidth
	}
	if c.CardHeight <= 0 {
		c.CardHeight = def.CardHeight
	}
	if c.CommitFraction <= 0 || c.CommitFraction >= 1 {
		c.CommitFraction = def.CommitFraction
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = def.VelocityThreshold
	}
	if c.MaxRotation <= 0 {
		c.MaxRotation = def.MaxRotation
	}
	if c.ExitDuration <= 0 {
		c.ExitDuration = def.ExitDuration
	}
	if c.SpringDuration <= 0 {
		c.SpringDuration = def.SpringDuration
	}
	return c
}

// CommitDistanceX is the horizontal displacement that must be exceeded to commit.
func (c Config) CommitDistanceX() float64 { return c.CommitFraction * c.CardWidth }

// CommitDistanceY is the vertical displacement that must be exceeded to commit.
func (c Config) CommitDistanceY() float64 { return c.CommitFraction * c.CardHeight }
