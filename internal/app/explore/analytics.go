package explore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"artbeat/shared/go/models"
)

// LogAnalytics records dismissals as structured log events and keeps
// per-direction counters for the health endpoint.
type LogAnalytics struct {
	logger zerolog.Logger

	mu     sync.Mutex
	counts map[models.SwipeDirection]int
}

// NewLogAnalytics constructs a LogAnalytics writing to logger.
func NewLogAnalytics(logger zerolog.Logger) *LogAnalytics {
	return &LogAnalytics{
		logger: logger.With().Str("component", "analytics").Logger(),
		counts: make(map[models.SwipeDirection]int),
	}
}

// CardDismissed implements explore.Analytics.
func (a *LogAnalytics) CardDismissed(_ context.Context, sessionID string, category models.Category, rec models.SwipeRecord) {
	a.mu.Lock()
	a.counts[rec.Direction]++
	a.mu.Unlock()

	a.logger.Info().
		Str("session_id", sessionID).
		Str("category", string(category)).
		Str("card_id", rec.CardID).
		Str("direction", string(rec.Direction)).
		Time("swiped_at", rec.Timestamp).
		Msg("card swiped")
}

// Counts returns a copy of the per-direction totals.
func (a *LogAnalytics) Counts() map[models.SwipeDirection]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[models.SwipeDirection]int, len(a.counts))
	for d, n := range a.counts {
		out[d] = n
	}
	return out
}
