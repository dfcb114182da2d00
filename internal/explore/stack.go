package explore

import (
	"fmt"
	"sync"
	"time"

	"artbeat/shared/go/models"
)

// Stack owns the visible cards of the active category and the swipe
// history for that stack. The last item is the top, interactive card.
type Stack struct {
	now func() time.Time

	mu      sync.Mutex
	items   []models.ExploreItem
	history []models.SwipeRecord
}

// NewStack builds an empty stack. A nil clock defaults to time.Now.
func NewStack(now func() time.Time) *Stack {
	if now == nil {
		now = time.Now
	}
	return &Stack{now: now}
}

// Replace installs items in the given order and discards the history.
// Items with empty or duplicate ids are rejected and the stack is left as it was.
func (s *Stack) Replace(items []models.ExploreItem) error {
	if err := checkIdentity(items); err != nil {
		return err
	}

	next := make([]models.ExploreItem, len(items))
	copy(next, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = next
	s.history = nil
	return nil
}

// DismissTop removes the top card and records the swipe. It is a no-op on
// an empty stack.
func (s *Stack) DismissTop(direction models.SwipeDirection) (models.SwipeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return models.SwipeRecord{}, false
	}
	return s.popLocked(direction), true
}

// Dismiss removes cardID only if it is still the top card. A commit that
// completes after the stack was replaced therefore changes nothing.
func (s *Stack) Dismiss(cardID string, direction models.SwipeDirection) (models.SwipeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	if n == 0 || s.items[n-1].ID != cardID {
		return models.SwipeRecord{}, false
	}
	return s.popLocked(direction), true
}

func (s *Stack) popLocked(direction models.SwipeDirection) models.SwipeRecord {
	n := len(s.items)
	top := s.items[n-1]
	s.items[n-1] = models.ExploreItem{}
	s.items = s.items[:n-1]

	rec := models.SwipeRecord{CardID: top.ID, Direction: direction, Timestamp: s.now()}
	s.history = append(s.history, rec)
	return rec
}

// PeekTop returns the top card, if any.
func (s *Stack) PeekTop() (models.ExploreItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return models.ExploreItem{}, false
	}
	return s.items[len(s.items)-1], true
}

// Items returns a copy of the stack, bottom first.
func (s *Stack) Items() []models.ExploreItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ExploreItem, len(s.items))
	copy(out, s.items)
	return out
}

// History returns a copy of the swipe log, oldest first.
func (s *Stack) History() []models.SwipeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.SwipeRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of cards left.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func checkIdentity(items []models.ExploreItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("item %d: %w", i, ErrEmptyItemID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateItem, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
