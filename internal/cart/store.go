package cart

import (
	"sync"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the ordered collection of line items for one shopping session.
// All reads and writes go through the methods below; there is at most one
// line per composite key. Subscribers are notified outside the lock.
type Store struct {
	mu    sync.RWMutex
	items []domain.LineItem
	index map[string]int
	subs  subscribers
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// AddOrMerge adds quantity units of the product variant. An existing line
// keeps its unit price and only grows in quantity.
func (s *Store) AddOrMerge(p domain.Product, v *domain.Variant, quantity int) (domain.LineItem, error) {
	if quantity < 1 {
		return domain.LineItem{}, ErrInvalidQuantity
	}
	key := domain.ResolveKey(p.ID, v)

	s.mu.Lock()
	var (
		item domain.LineItem
		kind EventKind
	)
	if i, ok := s.index[key]; ok {
		s.items[i].Quantity += quantity
		item, kind = s.items[i], EventItemMerged
	} else {
		item, kind = domain.NewLineItem(p, v, quantity), EventItemAdded
		s.index[key] = len(s.items)
		s.items = append(s.items, item)
	}
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: kind, Key: key, Item: &item})
	return item, nil
}

// SetQuantity replaces the quantity of an existing line. Quantities below one
// are rejected and leave the line untouched.
func (s *Store) SetQuantity(key string, quantity int) (domain.LineItem, error) {
	if quantity < 1 {
		return domain.LineItem{}, ErrQuantityBelowMinimum
	}

	s.mu.Lock()
	i, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return domain.LineItem{}, ErrItemNotFound
	}
	s.items[i].Quantity = quantity
	item := s.items[i]
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventQuantityChanged, Key: key, Item: &item})
	return item, nil
}

func (s *Store) Increment(key string) (domain.LineItem, error) {
	return s.step(key, 1)
}

// Decrement lowers the quantity by one; at quantity one it does nothing.
func (s *Store) Decrement(key string) (domain.LineItem, error) {
	return s.step(key, -1)
}

func (s *Store) step(key string, delta int) (domain.LineItem, error) {
	s.mu.Lock()
	i, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return domain.LineItem{}, ErrItemNotFound
	}
	if s.items[i].Quantity+delta < 1 {
		item := s.items[i]
		s.mu.Unlock()
		return item, nil
	}
	s.items[i].Quantity += delta
	item := s.items[i]
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventQuantityChanged, Key: key, Item: &item})
	return item, nil
}

// Remove deletes the line with the given key. Unknown keys are ignored.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	i, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventItemRemoved, Key: key, Item: &removed})
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.index = make(map[string]int)
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventCleared})
}

// Restore replaces the contents with a persisted snapshot. Lines sharing a
// key are merged and lines with a non-positive quantity are dropped.
func (s *Store) Restore(items []domain.LineItem) {
	s.mu.Lock()
	s.items = make([]domain.LineItem, 0, len(items))
	s.index = make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if item.Key == "" {
			item.Key = domain.ResolveKey(item.ProductID, item.Variant)
		}
		if i, ok := s.index[item.Key]; ok {
			s.items[i].Quantity += item.Quantity
			continue
		}
		s.index[item.Key] = len(s.items)
		s.items = append(s.items, item)
	}
	fns := s.subs.snapshot()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventRestored})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Get(key string) (domain.LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return domain.LineItem{}, false
	}
	return s.items[i], true
}

// Len is the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Count is the number of units across all lines, as shown on the header badge.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Subtotal sums unit price times quantity. Fees and discounts are not applied here.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Subtotal(s.items)
}

// Subscribe registers fn for mutation events and returns a function that
// removes the subscription.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.subs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs.fns, id)
		s.mu.Unlock()
	}
}

// Subtotal sums the line totals of items.
func Subtotal(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}

func (s *Store) reindex() {
	for k := range s.index {
		delete(s.index, k)
	}
	for i, item := range s.items {
		s.index[item.Key] = i
	}
}

func notify(fns []func(Event), e Event) {
	for _, fn := range fns {
		fn(e)
	}
}
