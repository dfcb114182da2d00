package explore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"artbeat/internal/gesture"
	"artbeat/shared/go/models"
)

// Analytics receives committed dismissals. Calls are fire-and-forget.
type Analytics interface {
	CardDismissed(ctx context.Context, sessionID string, category models.Category, rec models.SwipeRecord)
}

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	ID           string
	Source       DataSource
	Placeholders PlaceholderProvider
	Analytics    Analytics
	Gesture      gesture.Config
	LoadTimeout  time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Session is one user's explore feed: the card stack, its history, the
// filter record, the loader and the drag controller of the top card.
type Session struct {
	id        string
	stack     *Stack
	filters   *FilterStore
	loader    *Loader
	drag      *gesture.Controller
	analytics Analytics
	logger    zerolog.Logger

	armMu sync.Mutex

	mu       sync.Mutex
	category models.Category
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	ID          string               `json:"id"`
	Category    models.Category      `json:"category"`
	State       LoadState            `json:"state"`
	Error       string               `json:"error,omitempty"`
	Placeholder bool                 `json:"placeholder"`
	Token       LoadToken            `json:"token"`
	Top         *models.ExploreItem  `json:"top"`
	Items       []models.ExploreItem `json:"items"`
	History     []models.SwipeRecord `json:"history"`
	Filters     FilterState          `json:"filters"`
	Gesture     string               `json:"gesture"`
	Transform   gesture.Transform    `json:"transform"`
}

// NewSession builds an idle session. No load runs until a category is chosen.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		id:        cfg.ID,
		stack:     NewStack(cfg.Now),
		filters:   NewFilterStore(),
		analytics: cfg.Analytics,
		logger:    cfg.Logger.With().Str("session_id", cfg.ID).Logger(),
	}

	opts := []LoaderOption{
		WithLoaderLogger(s.logger),
		WithAppliedHook(func(LoadResult) { s.rearm() }),
	}
	if cfg.Placeholders != nil {
		opts = append(opts, WithPlaceholders(cfg.Placeholders))
	}
	if cfg.LoadTimeout > 0 {
		opts = append(opts, WithLoadTimeout(cfg.LoadTimeout))
	}
	s.loader = NewLoader(s.stack, cfg.Source, opts...)
	s.drag = gesture.NewController(cfg.Gesture, s.onCommit, gesture.WithLogger(s.logger))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Drag exposes the drag controller of the top card.
func (s *Session) Drag() *gesture.Controller { return s.drag }

// Loader exposes the loader, mainly for instrumentation.
func (s *Session) Loader() *Loader { return s.loader }

// Category returns the active category, or "" before the first selection.
func (s *Session) Category() models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

// OnCategoryChange switches the active category and starts its load.
func (s *Session) OnCategoryChange(ctx context.Context, category models.Category) (LoadToken, <-chan LoadResult, error) {
	q, err := s.filters.Query(category)
	if err != nil {
		return 0, nil, err
	}

	// The category and the loader's current token move together.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = category
	token, done := s.loader.Request(ctx, q)
	return token, done, nil
}

// OnFilterApply replaces the filter record and reloads the active category.
func (s *Session) OnFilterApply(ctx context.Context, filters FilterState) (LoadToken, <-chan LoadResult, error) {
	if err := s.filters.Apply(filters); err != nil {
		return 0, nil, err
	}
	return s.reloadActive(ctx)
}

// OnFilterUpdate sets several fields at once and reloads the active
// category. Either every field is applied or none is.
func (s *Session) OnFilterUpdate(ctx context.Context, fields map[string]string) (LoadToken, <-chan LoadResult, error) {
	next := &FilterStore{state: s.filters.State()}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := next.SetField(k, fields[k]); err != nil {
			return 0, nil, err
		}
	}
	return s.OnFilterApply(ctx, next.State())
}

// OnFilterReset restores the default filters and reloads the active category.
func (s *Session) OnFilterReset(ctx context.Context) (LoadToken, <-chan LoadResult, error) {
	s.filters.Reset()
	return s.reloadActive(ctx)
}

// Retry re-issues the last load with a fresh token.
func (s *Session) Retry(ctx context.Context) (LoadToken, <-chan LoadResult, error) {
	return s.loader.Retry(ctx)
}

// Reload is the empty-state action: clear the filters and request the same
// category again.
func (s *Session) Reload(ctx context.Context) (LoadToken, <-chan LoadResult, error) {
	return s.OnFilterReset(ctx)
}

func (s *Session) reloadActive(ctx context.Context) (LoadToken, <-chan LoadResult, error) {
	category := s.Category()
	if category == "" {
		category = models.CategoryArtists
	}
	return s.OnCategoryChange(ctx, category)
}

// OnCardDismissed removes cardID if it is still the top card, records the
// swipe and notifies analytics. It reports false when the card is no longer
// on top, for example because the stack was replaced mid-animation.
func (s *Session) OnCardDismissed(cardID string, direction models.SwipeDirection) (models.SwipeRecord, bool) {
	if !direction.Valid() {
		return models.SwipeRecord{}, false
	}
	rec, ok := s.stack.Dismiss(cardID, direction)
	if !ok {
		s.logger.Debug().Str("card_id", cardID).Msg("dismissal ignored: card no longer on top")
		return models.SwipeRecord{}, false
	}
	s.rearm()

	category := s.Category()
	s.logger.Info().
		Str("card_id", rec.CardID).
		Str("direction", string(rec.Direction)).
		Str("category", string(category)).
		Msg("card dismissed")

	if s.analytics != nil {
		go s.analytics.CardDismissed(context.Background(), s.id, category, rec)
	}
	return rec, true
}

func (s *Session) onCommit(cardID string, direction models.SwipeDirection) {
	s.OnCardDismissed(cardID, direction)
}

// CurrentTopCard returns the interactive card, or nil on an empty stack.
func (s *Session) CurrentTopCard() *models.ExploreItem {
	top, ok := s.stack.PeekTop()
	if !ok {
		return nil
	}
	return &top
}

// LoadState returns what the feed currently shows.
func (s *Session) LoadState() LoadState {
	return s.loader.Status().State
}

// Items returns the stack, bottom first.
func (s *Session) Items() []models.ExploreItem { return s.stack.Items() }

// History returns the swipe log of the current stack.
func (s *Session) History() []models.SwipeRecord { return s.stack.History() }

// Filters returns the current filter record.
func (s *Session) Filters() FilterState { return s.filters.State() }

// Snapshot collects everything a client needs to render the feed.
func (s *Session) Snapshot() Snapshot {
	status := s.loader.Status()
	snap := Snapshot{
		ID:          s.id,
		Category:    status.Category,
		State:       status.State,
		Placeholder: status.Placeholder,
		Token:       status.Token,
		Top:         s.CurrentTopCard(),
		Items:       s.stack.Items(),
		History:     s.stack.History(),
		Filters:     s.filters.State(),
		Gesture:     s.drag.State().String(),
		Transform:   s.drag.Transform(),
	}
	if status.Err != nil {
		snap.Error = status.Err.Error()
	}
	return snap
}

// rearm points the drag controller at the current top card.
func (s *Session) rearm() {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	if top, ok := s.stack.PeekTop(); ok {
		s.drag.Arm(top.ID)
		return
	}
	s.drag.Disarm()
}
