package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/jewel_cart/internal/cache"
	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/wishlist"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session is everything one shopper has open: cart, wishlist and the
// checkout in progress.
type Session struct {
	ID       string
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Checkout *checkout.Orchestrator

	persistMu   sync.Mutex
	unsubscribe []func()
	lastSeen    atomic.Int64 // unix nanos of the last Get
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type Option func(*Manager)

func WithJournal(j checkout.Journal) Option {
	return func(m *Manager) { m.journal = j }
}

func WithPublisher(p checkout.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) { m.writeTimeout = d }
}

func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) { m.loadTimeout = d }
}

// Manager keeps live sessions in memory and writes their cart and wishlist
// through to the snapshot cache on every change.
type Manager struct {
	cache     cache.SessionCache
	gateway   checkout.PaymentGateway
	orders    checkout.OrderCreator
	journal   checkout.Journal
	publisher checkout.EventPublisher
	cfg       checkout.Config
	logger    *zap.Logger

	writeTimeout time.Duration
	loadTimeout  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group // one cache load per session id
}

func NewManager(store cache.SessionCache, gateway checkout.PaymentGateway, orders checkout.OrderCreator,
	cfg checkout.Config, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cache:        store,
		gateway:      gateway,
		orders:       orders,
		cfg:          cfg,
		logger:       logger,
		writeTimeout: time.Second,
		loadTimeout:  2 * time.Second,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the live session for id, restoring it from the cache the first
// time it is seen. A cache failure starts the session empty. The load is
// shared by concurrent callers and is not bound to any one caller's context.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s := m.lookup(id); s != nil {
		s.touch()
		return s, nil
	}

	ch := m.sfg.DoChan(id, func() (interface{}, error) {
		if s := m.lookup(id); s != nil {
			return s, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()
		return m.load(loadCtx, id), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s := res.Val.(*Session)
		s.touch()
		return s, nil
	}
}

func (m *Manager) load(ctx context.Context, id string) *Session {
	s := m.build(id)
	if m.cache != nil {
		snap, err := m.cache.Get(ctx, id)
		switch {
		case err == nil:
			s.Cart.Restore(snap.Cart)
			s.Wishlist.Restore(snap.Wishlist)
		case errors.Is(err, cache.ErrCacheMiss):
		default:
			m.logger.Warn("session cache get failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	m.watch(s)
	s.touch()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.logger.Debug("session loaded",
		zap.String("session_id", id), zap.Int("cart_lines", s.Cart.Len()), zap.Int("wishlist", s.Wishlist.Len()))
	return s
}

// Drop evicts the session from memory. Its last snapshot stays in the cache.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range s.unsubscribe {
		fn()
	}
}

// EvictStale drops the in-memory copy of a session after an order placed by
// another instance. The session that ran checkoutID itself is kept.
func (m *Manager) EvictStale(id, checkoutID string) bool {
	s := m.lookup(id)
	if s == nil {
		return false
	}
	st := s.Checkout.State()
	if st.CheckoutID == checkoutID {
		return false
	}
	// a payment or order submission of its own is still running
	if st.Status.InFlight() {
		m.logger.Info("kept stale session with checkout in flight",
			zap.String("session_id", id), zap.String("own_checkout_id", st.CheckoutID), zap.String("checkout_id", checkoutID))
		return false
	}
	m.Drop(id)
	m.logger.Info("evicted stale session", zap.String("session_id", id), zap.String("checkout_id", checkoutID))
	return true
}

// Sweep drops sessions not used for longer than idle and returns how many
// went. Sessions with a checkout in flight are kept so their payment timer
// and submission finish against the live copy.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) && !s.Checkout.State().Status.InFlight() {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	dropped := 0
	for _, id := range stale {
		s := m.lookup(id)
		// re-check: the session may have been used since the scan
		if s == nil || !s.idleSince().Before(cutoff) || s.Checkout.State().Status.InFlight() {
			continue
		}
		m.Drop(id)
		dropped++
	}
	if dropped > 0 {
		m.logger.Debug("swept idle sessions", zap.Int("dropped", dropped), zap.Int("live", m.Len()))
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(idle)
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *Manager) build(id string) *Session {
	c := cart.NewStore()
	opts := []checkout.Option{checkout.WithSessionID(id)}
	if m.journal != nil {
		opts = append(opts, checkout.WithJournal(m.journal))
	}
	if m.publisher != nil {
		opts = append(opts, checkout.WithPublisher(m.publisher))
	}
	return &Session{
		ID:       id,
		Cart:     c,
		Wishlist: wishlist.NewStore(),
		Checkout: checkout.NewOrchestrator(c, m.gateway, m.orders, m.cfg,
			m.logger.With(zap.String("session_id", id)), opts...),
	}
}

func (m *Manager) watch(s *Session) {
	if m.cache == nil {
		return
	}
	s.unsubscribe = append(s.unsubscribe,
		s.Cart.Subscribe(func(e cart.Event) {
			if e.Kind != cart.EventRestored {
				m.persist(s)
			}
		}),
		s.Wishlist.Subscribe(func(e wishlist.Event) {
			if e.Kind != wishlist.EventRestored {
				m.persist(s)
			}
		}),
	)
}

// persist writes the current cart and wishlist. Writes for one session are
// serialized so the newest state always lands last.
func (m *Manager) persist(s *Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := &cache.Snapshot{
		SessionID: s.ID,
		Cart:      s.Cart.Items(),
		Wishlist:  s.Wishlist.Items(),
		UpdatedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	if err := m.cache.Set(ctx, s.ID, snap); err != nil {
		m.logger.Warn("session cache set failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}
