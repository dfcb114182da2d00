package explore

import (
	"context"
	"slices"
	"time"

	"artbeat/internal/explore"
	"artbeat/shared/go/models"
)

// DefaultPageSize bounds one category load when none is configured.
const DefaultPageSize = 30

// Store defines the catalog reads the explore feed needs.
type Store interface {
	ListExploreItems(ctx context.Context, q explore.Query, limit int, now time.Time) ([]models.ExploreItem, error)
}

// Service is the recommendation data source behind every explore session.
type Service interface {
	explore.DataSource
}

type service struct {
	store    Store
	pageSize int
	now      func() time.Time
}

// Option customises the Service.
type Option func(*service)

// WithPageSize sets how many cards one load returns.
func WithPageSize(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the clock used for date windows.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New constructs an explore Service.
func New(store Store, opts ...Option) Service {
	s := &service{
		store:    store,
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCategory returns the matching catalog page with the best match last,
// so it lands on top of the stack.
func (s *service) FetchCategory(ctx context.Context, q explore.Query) ([]models.ExploreItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := s.store.ListExploreItems(ctx, q, s.pageSize, s.now().UTC())
	if err != nil {
		return nil, err
	}
	slices.Reverse(items)
	return items, nil
}
