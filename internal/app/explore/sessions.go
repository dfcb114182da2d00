package explore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"artbeat/internal/explore"
	"artbeat/internal/gesture"
)

var (
	// ErrInvalidToken indicates a missing, malformed or expired session token.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionNotFound indicates a valid token whose session has been swept.
	ErrSessionNotFound = errors.New("session not found")
)

const tokenIssuer = "artbeat"

// RegistryConfig configures session creation.
type RegistryConfig struct {
	Secret       []byte
	IdleTTL      time.Duration
	TokenTTL     time.Duration
	Source       explore.DataSource
	Placeholders explore.PlaceholderProvider
	Analytics    explore.Analytics
	Gesture      gesture.Config
	LoadTimeout  time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time
}

type entry struct {
	session  *explore.Session
	lastSeen time.Time
}

// Registry owns the live explore sessions and the tokens that address them.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Registry{cfg: cfg, sessions: make(map[string]*entry)}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Create starts a new idle session and returns it with its bearer token.
func (r *Registry) Create(ctx context.Context) (*explore.Session, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	id := uuid.NewString()
	now := r.cfg.Now()

	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.cfg.TokenTTL)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.cfg.Secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	session := explore.NewSession(explore.SessionConfig{
		ID:           id,
		Source:       r.cfg.Source,
		Placeholders: r.cfg.Placeholders,
		Analytics:    r.cfg.Analytics,
		Gesture:      r.cfg.Gesture,
		LoadTimeout:  r.cfg.LoadTimeout,
		Logger:       r.cfg.Logger,
	})

	r.mu.Lock()
	r.sessions[id] = &entry{session: session, lastSeen: now}
	r.mu.Unlock()

	r.cfg.Logger.Info().Str("session_id", id).Msg("explore session created")
	return session, token, nil
}

// Lookup resolves a bearer token to its session and marks it as used.
func (r *Registry) Lookup(token string) (*explore.Session, error) {
	id, err := r.sessionID(token)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.cfg.Now()
	return e.session, nil
}

func (r *Registry) sessionID(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return r.cfg.Secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.cfg.Now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Sweep drops sessions idle for longer than the configured TTL and reports
// how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.cfg.Logger.Info().Int("removed", removed).Int("live", len(r.sessions)).Msg("idle explore sessions swept")
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
