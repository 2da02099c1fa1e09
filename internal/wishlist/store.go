package wishlist

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/domain"
)

var (
	ErrAlreadyInWishlist = errors.New("item already in wishlist")
	ErrItemNotFound      = errors.New("item not found in wishlist")
)

type EventKind string

const (
	EventAdded    EventKind = "added"
	EventRemoved  EventKind = "removed"
	EventCleared  EventKind = "cleared"
	EventRestored EventKind = "restored"
)

type Event struct {
	Kind EventKind
	Key  string
}

// Store is a set of liked product variants, ordered by when they were added.
type Store struct {
	mu    sync.RWMutex
	items []domain.WishlistItem
	keys  map[string]struct{}
	subs  map[int]func(Event)
	next  int
}

func NewStore() *Store {
	return &Store{
		keys: make(map[string]struct{}),
		subs: make(map[int]func(Event)),
	}
}

// Add inserts the product variant unless its key is already present.
func (s *Store) Add(p domain.Product, v *domain.Variant) (domain.WishlistItem, error) {
	key := domain.ResolveKey(p.ID, v)

	s.mu.Lock()
	if _, ok := s.keys[key]; ok {
		s.mu.Unlock()
		return domain.WishlistItem{}, ErrAlreadyInWishlist
	}
	var variant *domain.Variant
	if v != nil {
		c := *v
		variant = &c
	}
	item := domain.WishlistItem{
		Key:       key,
		ProductID: p.ID,
		Name:      p.Name,
		Variant:   variant,
		AddedAt:   time.Now(),
	}
	s.items = append(s.items, item)
	s.keys[key] = struct{}{}
	fns := s.listeners()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventAdded, Key: key})
	return item, nil
}

func (s *Store) Remove(key string) {
	if s.remove(key) {
		s.mu.RLock()
		fns := s.listeners()
		s.mu.RUnlock()
		notify(fns, Event{Kind: EventRemoved, Key: key})
	}
}

func (s *Store) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return false
	}
	delete(s.keys, key)
	for i, item := range s.items {
		if item.Key == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.keys = make(map[string]struct{})
	fns := s.listeners()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventCleared})
}

// Restore replaces the contents with a persisted snapshot, dropping duplicates.
func (s *Store) Restore(items []domain.WishlistItem) {
	s.mu.Lock()
	s.items = make([]domain.WishlistItem, 0, len(items))
	s.keys = make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Key == "" {
			item.Key = domain.ResolveKey(item.ProductID, item.Variant)
		}
		if _, ok := s.keys[item.Key]; ok {
			continue
		}
		s.keys[item.Key] = struct{}{}
		s.items = append(s.items, item)
	}
	fns := s.listeners()
	s.mu.Unlock()

	notify(fns, Event{Kind: EventRestored})
}

func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

func (s *Store) Items() []domain.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WishlistItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// MoveToCart adds one unit of the wishlist entry to c and drops it from the wishlist.
func (s *Store) MoveToCart(key string, c *cart.Store) (domain.LineItem, error) {
	s.mu.RLock()
	var (
		item  domain.WishlistItem
		found bool
	)
	for _, it := range s.items {
		if it.Key == key {
			item, found = it, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return domain.LineItem{}, ErrItemNotFound
	}

	line, err := c.AddOrMerge(item.Product(), item.Variant, 1)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("move to cart: %w", err)
	}
	s.Remove(key)
	return line, nil
}

func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// listeners must be called with the lock held.
func (s *Store) listeners() []func(Event) {
	out := make([]func(Event), 0, len(s.subs))
	for i := 1; i <= s.next; i++ {
		if fn, ok := s.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(fns []func(Event), e Event) {
	for _, fn := range fns {
		fn(e)
	}
}
