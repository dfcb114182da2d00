package explore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"artbeat/shared/go/models"
)

// LoadToken identifies one load request. Tokens increase monotonically per loader.
type LoadToken uint64

// LoadState is what the feed shows for the active category.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateSuccess LoadState = "success"
	StateEmpty   LoadState = "empty"
	StateError   LoadState = "error"
)

// DataSource is the recommendation backend. One call is made per load.
type DataSource interface {
	FetchCategory(ctx context.Context, q Query) ([]models.ExploreItem, error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context, q Query) ([]models.ExploreItem, error)

// FetchCategory calls f.
func (f DataSourceFunc) FetchCategory(ctx context.Context, q Query) ([]models.ExploreItem, error) {
	return f(ctx, q)
}

// LoadResult reports how a request ended. Stale results were superseded by
// a newer request and changed nothing.
type LoadResult struct {
	Token       LoadToken
	Category    models.Category
	State       LoadState
	Stale       bool
	Placeholder bool
	Items       int
	Err         error
}

// LoaderStatus is the loader's view of the feed.
type LoaderStatus struct {
	Token       LoadToken
	Category    models.Category
	State       LoadState
	Placeholder bool
	Err         error
}

// Loader performs category loads into a Stack and guarantees that only the
// most recently requested load is ever applied.
type Loader struct {
	stack        *Stack
	source       DataSource
	placeholders PlaceholderProvider
	timeout      time.Duration
	logger       zerolog.Logger
	onApplied    func(LoadResult)

	stale atomic.Uint64

	mu          sync.Mutex
	current     LoadToken
	cancel      context.CancelFunc
	last        *Query
	state       LoadState
	category    models.Category
	placeholder bool
	err         error
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithPlaceholders installs the degraded-mode provider used for empty results.
func WithPlaceholders(p PlaceholderProvider) LoaderOption {
	return func(l *Loader) { l.placeholders = p }
}

// WithLoadTimeout bounds each data source call.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithAppliedHook is called after a result has been applied (success, empty
// or error), outside the loader lock. It is not called for stale results.
func WithAppliedHook(fn func(LoadResult)) LoaderOption {
	return func(l *Loader) { l.onApplied = fn }
}

// NewLoader builds a loader writing into stack.
func NewLoader(stack *Stack, source DataSource, opts ...LoaderOption) *Loader {
	l := &Loader{
		stack:  stack,
		source: source,
		logger: zerolog.Nop(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Request starts a load for q and returns its token. The returned channel
// receives exactly one result and is then closed. Issuing a request cancels
// the context of the one it supersedes; whatever that one returns is discarded.
//
// The load outlives ctx's cancellation but keeps its values.
func (l *Loader) Request(ctx context.Context, q Query) (LoadToken, <-chan LoadResult) {
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if l.timeout > 0 {
		var cancelTimeout context.CancelFunc
		loadCtx, cancelTimeout = context.WithTimeout(loadCtx, l.timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	l.mu.Lock()
	l.current++
	token := l.current
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	last := q
	l.last = &last
	l.state = StateLoading
	l.category = q.Category
	l.err = nil
	l.mu.Unlock()

	l.logger.Debug().
		Uint64("token", uint64(token)).
		Str("category", string(q.Category)).
		Msg("load requested")

	done := make(chan LoadResult, 1)
	go func() {
		defer close(done)
		defer cancel()

		items, err := l.source.FetchCategory(loadCtx, q)
		res := l.complete(token, q.Category, items, err)
		if !res.Stale && l.onApplied != nil {
			l.onApplied(res)
		}
		done <- res
	}()
	return token, done
}

// Load requests q and waits for its result or for ctx to end.
func (l *Loader) Load(ctx context.Context, q Query) (LoadResult, error) {
	_, done := l.Request(ctx, q)
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return LoadResult{}, ctx.Err()
	}
}

// Retry re-issues the most recent request with a fresh token.
func (l *Loader) Retry(ctx context.Context) (LoadToken, <-chan LoadResult, error) {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	if last == nil {
		return 0, nil, ErrNothingToRetry
	}
	token, done := l.Request(ctx, *last)
	return token, done, nil
}

// Status returns the current load state.
func (l *Loader) Status() LoaderStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoaderStatus{
		Token:       l.current,
		Category:    l.category,
		State:       l.state,
		Placeholder: l.placeholder,
		Err:         l.err,
	}
}

// Current returns the token of the latest request.
func (l *Loader) Current() LoadToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// StaleDiscards counts results dropped because a newer request superseded them.
func (l *Loader) StaleDiscards() uint64 { return l.stale.Load() }

// complete applies a finished fetch if token is still current. The token
// check and the stack replace happen under one lock.
func (l *Loader) complete(token LoadToken, category models.Category, items []models.ExploreItem, fetchErr error) LoadResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := LoadResult{Token: token, Category: category}
	if token != l.current {
		l.stale.Add(1)
		l.logger.Debug().
			Uint64("token", uint64(token)).
			Uint64("current", uint64(l.current)).
			Str("category", string(category)).
			Msg("stale load discarded")
		res.Stale = true
		return res
	}
	l.cancel = nil

	fail := func(err error) LoadResult {
		l.state = StateError
		l.err = &LoadError{Category: category, Token: token, Err: err}
		l.logger.Warn().Err(err).
			Uint64("token", uint64(token)).
			Str("category", string(category)).
			Msg("load failed")
		res.State = StateError
		res.Err = l.err
		return res
	}

	if fetchErr != nil {
		return fail(fetchErr)
	}
	if err := checkItems(category, items); err != nil {
		return fail(err)
	}

	placeholder := false
	if len(items) == 0 && l.placeholders != nil {
		items = l.placeholders.Placeholders(category)
		placeholder = len(items) > 0
	}
	if err := l.stack.Replace(items); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformedItems, err))
	}

	l.placeholder = placeholder
	l.err = nil
	if len(items) == 0 {
		l.state = StateEmpty
	} else {
		l.state = StateSuccess
	}

	res.State = l.state
	res.Placeholder = placeholder
	res.Items = len(items)

	l.logger.Info().
		Uint64("token", uint64(token)).
		Str("category", string(category)).
		Int("items", len(items)).
		Bool("placeholder", placeholder).
		Msg("load applied")
	return res
}

func checkItems(category models.Category, items []models.ExploreItem) error {
	for _, item := range items {
		if item.Kind != category {
			return fmt.Errorf("%w: item %q is %q, expected %q", ErrMalformedItems, item.ID, item.Kind, category)
		}
		if err := item.CheckVariant(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedItems, err)
		}
	}
	if err := checkIdentity(items); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedItems, err)
	}
	return nil
}
