package explore

import (
	"context"
	"sync"
	"testing"
	"time"

	"artbeat/shared/go/models"
)

type fetchReply struct {
	items []models.ExploreItem
	err   error
}

// gatedSource blocks every fetch for a category until the test releases it,
// so tests decide the order in which loads resolve.
type gatedSource struct {
	mu      sync.Mutex
	gates   map[models.Category]chan fetchReply
	queries []Query
}

func newGatedSource() *gatedSource {
	return &gatedSource{gates: map[models.Category]chan fetchReply{}}
}

func (g *gatedSource) gate(c models.Category) chan fetchReply {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[c]
	if !ok {
		ch = make(chan fetchReply, 8)
		g.gates[c] = ch
	}
	return ch
}

func (g *gatedSource) FetchCategory(ctx context.Context, q Query) ([]models.ExploreItem, error) {
	g.mu.Lock()
	g.queries = append(g.queries, q)
	g.mu.Unlock()

	r := <-g.gate(q.Category)
	return r.items, r.err
}

func (g *gatedSource) release(c models.Category, items []models.ExploreItem, err error) {
	g.gate(c) <- fetchReply{items: items, err: err}
}

func (g *gatedSource) calls() []Query {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Query(nil), g.queries...)
}

func wait(t *testing.T, done <-chan LoadResult) LoadResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("load did not finish")
	}
	return LoadResult{}
}

func staticSource(items ...models.ExploreItem) DataSource {
	return DataSourceFunc(func(context.Context, Query) ([]models.ExploreItem, error) {
		return items, nil
	})
}
