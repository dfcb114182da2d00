// Package gesture implements the drag controller driving the top card of the
// explore stack: pointer tracking, the commit/spring-back decision and the
// exactly-once dismissal callback.
package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"artbeat/shared/go/models"
)

// State is the controller's position in Idle -> Dragging -> {Committing, SpringingBack} -> Idle.
type State int

const (
	Idle State = iota
	Dragging
	Committing
	SpringingBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case SpringingBack:
		return "springing_back"
	default:
		return "unknown"
	}
}

// Outcome is the release decision.
type Outcome string

const (
	OutcomeCommit     Outcome = "commit"
	OutcomeSpringBack Outcome = "spring_back"
)

// Point is a pointer position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a displacement or a velocity.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Decision describes what a release resolved to.
type Decision struct {
	CardID      string                `json:"card_id"`
	Outcome     Outcome               `json:"outcome"`
	Direction   models.SwipeDirection `json:"direction,omitempty"`
	Translation Vector                `json:"translation"`
	Velocity    Vector                `json:"velocity"`
}

// Transform is the visual state of the dragged card. It is derived from the
// translation only and has no effect on the data model.
type Transform struct {
	Translation Vector  `json:"translation"`
	Rotation    float64 `json:"rotation"`
	Scale       float64 `json:"scale"`
}

// DismissFunc receives committed dismissals once the exit transition is over.
type DismissFunc func(cardID string, direction models.SwipeDirection)

// Controller tracks a single active pointer on the armed (topmost) card.
type Controller struct {
	cfg       Config
	onDismiss DismissFunc
	logger    zerolog.Logger

	mu      sync.Mutex
	state   State
	armed   string
	card    string
	pointer int64
	origin  Point
	lastPt  Point
	lastAt  time.Time

	translation Vector
	velocity    Vector

	direction  models.SwipeDirection
	releasedAt time.Time
	releasedT  Vector
	exitTarget Vector
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger attaches a logger for state transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController builds an idle, unarmed controller.
func NewController(cfg Config, onDismiss DismissFunc, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg.WithDefaults(),
		onDismiss: onDismiss,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective tuning.
func (c *Controller) Config() Config { return c.cfg }

// Arm makes cardID the only interactive card. Arming a different card while
// a drag is in progress cancels that drag. An in-flight commit is left alone.
func (c *Controller) Arm(cardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.armed == cardID {
		return
	}
	if c.state == Dragging {
		c.logger.Debug().Str("card_id", c.card).Msg("drag cancelled by new top card")
		c.resetLocked()
	}
	c.armed = cardID
}

// Disarm leaves no card interactive.
func (c *Controller) Disarm() { c.Arm("") }

// Armed returns the interactive card id, or "" if none.
func (c *Controller) Armed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Press starts a drag. It is ignored unless the controller is idle and
// cardID is the armed card.
func (c *Controller) Press(pointerID int64, cardID string, p Point, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle || cardID == "" || cardID != c.armed {
		return false
	}

	c.state = Dragging
	c.card = cardID
	c.pointer = pointerID
	c.origin = p
	c.lastPt = p
	c.lastAt = at
	c.translation = Vector{}
	c.velocity = Vector{}
	return true
}

// Move updates translation and velocity for the active pointer.
func (c *Controller) Move(pointerID int64, p Point, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dragging || pointerID != c.pointer {
		return false
	}
	c.sampleLocked(p, at)
	return true
}

// Release ends the drag of the active pointer and decides between commit
// and spring-back. The dismissal callback does not fire here; it fires from
// Tick or Finish once the exit transition is complete.
func (c *Controller) Release(pointerID int64, p Point, at time.Time) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dragging || pointerID != c.pointer {
		return Decision{}, false
	}
	c.sampleLocked(p, at)

	d := Decision{
		CardID:      c.card,
		Translation: c.translation,
		Velocity:    c.velocity,
	}

	c.releasedAt = at
	c.releasedT = c.translation

	if c.shouldCommit() {
		d.Outcome = OutcomeCommit
		d.Direction = c.resolveDirection()
		c.direction = d.Direction
		c.exitTarget = c.offscreen(d.Direction)
		c.state = Committing
	} else {
		d.Outcome = OutcomeSpringBack
		c.state = SpringingBack
	}

	c.logger.Debug().
		Str("card_id", d.CardID).
		Str("outcome", string(d.Outcome)).
		Str("direction", string(d.Direction)).
		Float64("dx", d.Translation.X).
		Float64("dy", d.Translation.Y).
		Msg("drag released")

	return d, true
}

// Tick advances the running transition to time at. When a commit transition
// completes the dismissal callback is invoked, outside the controller lock.
func (c *Controller) Tick(at time.Time) State {
	c.mu.Lock()
	card, dir, fire := c.advanceLocked(at)
	state := c.state
	c.mu.Unlock()

	if fire && c.onDismiss != nil {
		c.onDismiss(card, dir)
	}
	return state
}

// Finish completes any running transition immediately.
func (c *Controller) Finish() State {
	c.mu.Lock()
	end := c.releasedAt.Add(c.cfg.ExitDuration + c.cfg.SpringDuration)
	c.mu.Unlock()
	return c.Tick(end)
}

// Transform reports the visual transform of the tracked card.
func (c *Controller) Transform() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transformLocked()
}

func (c *Controller) transformLocked() Transform {
	t := c.translation
	rot := c.cfg.MaxRotation * t.X / c.cfg.CardWidth
	rot = math.Max(-c.cfg.MaxRotation, math.Min(c.cfg.MaxRotation, rot))

	dist := math.Hypot(t.X, t.Y)
	scale := 1 - 0.05*math.Min(1, dist/c.cfg.CardWidth)

	return Transform{Translation: t, Rotation: rot, Scale: scale}
}

func (c *Controller) sampleLocked(p Point, at time.Time) {
	if dt := at.Sub(c.lastAt).Seconds(); dt > 0 {
		c.velocity = Vector{
			X: (p.X - c.lastPt.X) / dt,
			Y: (p.Y - c.lastPt.Y) / dt,
		}
	}
	c.lastPt = p
	c.lastAt = at
	c.translation = Vector{X: p.X - c.origin.X, Y: p.Y - c.origin.Y}
}

// shouldCommit applies the exclusive distance threshold and the fling rule.
func (c *Controller) shouldCommit() bool {
	t, v := c.translation, c.velocity
	if math.Abs(t.X) > c.cfg.CommitDistanceX() || math.Abs(t.Y) > c.cfg.CommitDistanceY() {
		return true
	}
	return flings(t.X, v.X, c.cfg.VelocityThreshold) || flings(t.Y, v.Y, c.cfg.VelocityThreshold)
}

// flings reports a release speed above threshold that agrees with the displacement on its axis.
func flings(displacement, velocity, threshold float64) bool {
	if math.Abs(velocity) <= threshold {
		return false
	}
	return displacement == 0 || (displacement > 0) == (velocity > 0)
}

func (c *Controller) resolveDirection() models.SwipeDirection {
	t := c.translation
	nx := math.Abs(t.X) / c.cfg.CardWidth
	ny := math.Abs(t.Y) / c.cfg.CardHeight

	if nx == 0 && ny == 0 {
		// No displacement: the fling decides.
		t = c.velocity
		nx = math.Abs(t.X) / c.cfg.CardWidth
		ny = math.Abs(t.Y) / c.cfg.CardHeight
	}

	if nx >= ny {
		if t.X < 0 {
			return models.SwipeLeft
		}
		return models.SwipeRight
	}
	if t.Y < 0 {
		return models.SwipeUp
	}
	return models.SwipeDown
}

func (c *Controller) offscreen(dir models.SwipeDirection) Vector {
	w, h := c.cfg.CardWidth*1.5, c.cfg.CardHeight*1.5
	switch dir {
	case models.SwipeLeft:
		return Vector{X: -w, Y: c.translation.Y}
	case models.SwipeRight:
		return Vector{X: w, Y: c.translation.Y}
	case models.SwipeUp:
		return Vector{X: c.translation.X, Y: -h}
	default:
		return Vector{X: c.translation.X, Y: h}
	}
}

func (c *Controller) advanceLocked(at time.Time) (string, models.SwipeDirection, bool) {
	switch c.state {
	case Committing:
		p := progress(at.Sub(c.releasedAt), c.cfg.ExitDuration)
		c.translation = lerp(c.releasedT, c.exitTarget, p)
		if p < 1 {
			return "", "", false
		}
		card, dir := c.card, c.direction
		if c.armed == card {
			c.armed = ""
		}
		c.resetLocked()
		return card, dir, true

	case SpringingBack:
		p := progress(at.Sub(c.releasedAt), c.cfg.SpringDuration)
		c.translation = lerp(c.releasedT, Vector{}, p)
		if p >= 1 {
			c.resetLocked()
		}
	}
	return "", "", false
}

func (c *Controller) resetLocked() {
	c.state = Idle
	c.card = ""
	c.pointer = 0
	c.translation = Vector{}
	c.velocity = Vector{}
	c.direction = ""
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 || elapsed >= total {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}

func lerp(from, to Vector, p float64) Vector {
	return Vector{
		X: from.X + (to.X-from.X)*p,
		Y: from.Y + (to.Y-from.Y)*p,
	}
}
