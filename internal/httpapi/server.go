package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appexplore "artbeat/internal/app/explore"
	"artbeat/internal/explore"
	"artbeat/shared/go/models"
)

// SessionService creates explore sessions and resolves bearer tokens to them.
type SessionService interface {
	Create(ctx context.Context) (*explore.Session, string, error)
	Lookup(token string) (*explore.Session, error)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SwipeCounter exposes aggregate swipe totals for the health endpoint.
type SwipeCounter interface {
	Counts() map[models.SwipeDirection]int
}

// Server wires HTTP handlers to the explore sessions.
type Server struct {
	sessions    SessionService
	health      HealthChecker
	swipes      SwipeCounter
	logger      zerolog.Logger
	waitTimeout time.Duration
}

// Option customises a Server.
type Option func(*Server)

// WithHealthChecker makes /health report the checker's status.
func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithSwipeCounter adds swipe totals to /health.
func WithSwipeCounter(c SwipeCounter) Option {
	return func(s *Server) { s.swipes = c }
}

// WithLogger sets the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithWaitTimeout bounds how long ?wait=true requests block on a load.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Server) { s.waitTimeout = d }
}

// New configures a Server.
func New(sessions SessionService, opts ...Option) *Server {
	s := &Server{
		sessions:    sessions,
		logger:      zerolog.Nop(),
		waitTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes exposes the HTTP handlers for the explore feed.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/explore/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/explore", s.withSession(s.handleSnapshot))
	mux.HandleFunc("PUT /api/v1/explore/category", s.withSession(s.handleCategory))
	mux.HandleFunc("PATCH /api/v1/explore/filters", s.withSession(s.handleFilterUpdate))
	mux.HandleFunc("PUT /api/v1/explore/filters", s.withSession(s.handleFilterApply))
	mux.HandleFunc("DELETE /api/v1/explore/filters", s.withSession(s.handleFilterReset))
	mux.HandleFunc("POST /api/v1/explore/gestures", s.withSession(s.handleGestures))
	mux.HandleFunc("POST /api/v1/explore/retry", s.withSession(s.handleRetry))
	mux.HandleFunc("POST /api/v1/explore/reload", s.withSession(s.handleReload))

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string                        `json:"status"`
	Error  string                        `json:"error,omitempty"`
	Swipes map[models.SwipeDirection]int `json:"swipes,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.swipes != nil {
		resp.Swipes = s.swipes.Counts()
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session *explore.Session)

// withSession resolves the bearer token before calling next.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		session, err := s.sessions.Lookup(token)
		if err != nil {
			switch {
			case errors.Is(err, appexplore.ErrInvalidToken):
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			case errors.Is(err, appexplore.ErrSessionNotFound):
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			}
			return
		}
		next(w, r, session)
	}
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
