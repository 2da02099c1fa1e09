package cart

import "github.com/fjod/jewel_cart/internal/domain"

type EventKind string

const (
	EventItemAdded       EventKind = "item_added"
	EventItemMerged      EventKind = "item_merged"
	EventQuantityChanged EventKind = "quantity_changed"
	EventItemRemoved     EventKind = "item_removed"
	EventCleared         EventKind = "cleared"
	EventRestored        EventKind = "restored"
)

// Event is emitted after every successful mutation. Item holds the line as it
// is after the mutation (the removed line for EventItemRemoved) and is nil for
// whole-cart events.
type Event struct {
	Kind EventKind
	Key  string
	Item *domain.LineItem
}

type subscribers struct {
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) int {
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	s.next++
	s.fns[s.next] = fn
	return s.next
}

func (s *subscribers) snapshot() []func(Event) {
	out := make([]func(Event), 0, len(s.fns))
	for i := 1; i <= s.next; i++ {
		if fn, ok := s.fns[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
