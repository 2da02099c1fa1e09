package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Currency       string
	Fees           FeeSchedule
	PaymentTimeout time.Duration
	// SubmitAttempts is the total number of order submissions tried, first call included.
	SubmitAttempts uint
	SubmitBackoff  time.Duration
	SubmitTimeout  time.Duration
	JournalTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Currency:       "INR",
		PaymentTimeout: 15 * time.Minute,
		SubmitAttempts: 2,
		SubmitBackoff:  500 * time.Millisecond,
		SubmitTimeout:  10 * time.Second,
		JournalTimeout: 2 * time.Second,
	}
}

// State is a point-in-time view of the orchestrator.
type State struct {
	Status     domain.CheckoutStatus `json:"status"`
	CheckoutID string                `json:"checkout_id,omitempty"`
	PaymentRef string                `json:"payment_ref,omitempty"`
	PaymentURL string                `json:"payment_url,omitempty"`
	Amount     decimal.Decimal       `json:"amount"`
	Currency   string                `json:"currency,omitempty"`
	Receipt    *domain.OrderReceipt  `json:"receipt,omitempty"`
	Err        error                 `json:"-"`
}

type Option func(*Orchestrator)

func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

// Orchestrator sequences form validation, the payment gateway handoff and
// order submission for one shopping session. Only one checkout can be in
// flight at a time.
type Orchestrator struct {
	cart    *cart.Store
	gateway PaymentGateway
	orders  OrderCreator
	journal Journal
	events  EventPublisher
	cfg     Config
	logger  *zap.Logger

	sessionID string

	mu      sync.Mutex
	state   State
	attempt *attempt
	subs    map[int]func(State)
	nextSub int
}

// attempt is one pass through the checkout flow.
type attempt struct {
	id       string
	fromCart bool
	items    []domain.LineItem
	address  domain.Address
	phone    string
	addOns   AddOns
	fees     domain.FeeBreakdown
	session  *domain.PaymentSession
	timer    *time.Timer
}

func NewOrchestrator(c *cart.Store, gateway PaymentGateway, orders OrderCreator, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.SubmitAttempts == 0 {
		cfg.SubmitAttempts = 1
	}
	if cfg.JournalTimeout == 0 {
		cfg.JournalTimeout = 2 * time.Second
	}
	o := &Orchestrator{
		cart:    c,
		gateway: gateway,
		orders:  orders,
		journal: noopJournal{},
		events:  noopPublisher{},
		cfg:     cfg,
		logger:  logger,
		state:   State{Status: domain.CheckoutStatusIdle, Currency: cfg.Currency},
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckoutCart starts a checkout of every line currently in the cart. The
// cart is cleared once the order is accepted by the backend.
func (o *Orchestrator) CheckoutCart(ctx context.Context, form Form) (State, error) {
	return o.begin(ctx, form, nil, true)
}

// BuyNow starts a checkout of a single product variant without touching the cart.
func (o *Orchestrator) BuyNow(ctx context.Context, p domain.Product, v *domain.Variant, quantity int, form Form) (State, error) {
	if quantity < 1 {
		return o.State(), ErrInvalidQuantity
	}
	item := domain.NewLineItem(p, v, quantity)
	return o.begin(ctx, form, []domain.LineItem{item}, false)
}

func (o *Orchestrator) begin(ctx context.Context, form Form, items []domain.LineItem, fromCart bool) (State, error) {
	o.mu.Lock()
	if o.state.Status.InFlight() || o.state.Status == domain.CheckoutStatusFormValidation {
		st := o.state
		o.mu.Unlock()
		o.logger.Info("checkout already in progress", zap.String("checkout_id", st.CheckoutID), zap.Stringer("status", st.Status))
		return st, ErrCheckoutInProgress
	}
	o.transition(domain.CheckoutStatusFormValidation)
	o.state = State{Status: domain.CheckoutStatusFormValidation, Currency: o.cfg.Currency}

	if fromCart {
		items = o.cart.Items()
	}
	if len(items) == 0 {
		st := o.reset(ErrEmptyCart)
		o.mu.Unlock()
		o.publishState(st)
		return st, ErrEmptyCart
	}
	addr, phone, err := validateForm(form)
	if err != nil {
		st := o.reset(err)
		o.mu.Unlock()
		o.publishState(st)
		o.logger.Info("checkout form rejected", zap.Error(err))
		return st, err
	}

	att := &attempt{
		id:       uuid.NewString(),
		fromCart: fromCart,
		address:  addr,
		phone:    phone,
		addOns:   form.AddOns,
		fees:     o.cfg.Fees.Compute(cart.Subtotal(items), form.AddOns),
	}
	if !fromCart {
		att.items = items
	}
	o.attempt = att
	o.transition(domain.CheckoutStatusPaymentPending)
	o.state.CheckoutID = att.id
	o.state.Amount = att.fees.Total
	st := o.state
	o.mu.Unlock()
	o.publishState(st)

	o.logger.Info("checkout started",
		zap.String("checkout_id", att.id),
		zap.Int("items", len(items)),
		zap.Bool("from_cart", fromCart),
		zap.String("amount", att.fees.Total.StringFixed(2)))
	o.record(func(ctx context.Context) error {
		return o.journal.CreateCheckoutSession(ctx, &domain.CheckoutSession{
			ID:        att.id,
			SessionID: o.sessionID,
			Status:    domain.CheckoutStatusPaymentPending,
			Amount:    att.fees.Total,
			Currency:  o.cfg.Currency,
			Items:     items,
			CreatedAt: time.Now(),
		})
	})

	session, err := o.gateway.CreatePayment(ctx, domain.PaymentRequest{
		CheckoutID:  att.id,
		Amount:      att.fees.Total,
		Currency:    o.cfg.Currency,
		Description: fmt.Sprintf("Order %s (%d items)", att.id, len(items)),
		Customer: domain.PaymentCustomer{
			Name:        addr.Name,
			Email:       addr.Email,
			Phone:       phone,
			AddressLine: addr.Line,
		},
	})

	o.mu.Lock()
	if o.attempt != att || o.state.Status != domain.CheckoutStatusPaymentPending {
		// cancelled or timed out while the gateway was being called
		st := o.state
		o.mu.Unlock()
		if st.Err != nil {
			return st, st.Err
		}
		return st, ErrPaymentCancelled
	}
	if err != nil {
		perr := &PaymentError{Err: err}
		st := o.fail(att, perr)
		o.mu.Unlock()
		o.afterFailure(st)
		return st, perr
	}
	att.session = session
	o.state.PaymentRef = session.Ref
	o.state.PaymentURL = session.URL
	if o.cfg.PaymentTimeout > 0 {
		att.timer = time.AfterFunc(o.cfg.PaymentTimeout, func() { o.expire(att) })
	}
	st = o.state
	o.mu.Unlock()
	o.publishState(st)

	o.logger.Info("payment session opened", zap.String("checkout_id", att.id), zap.String("payment_ref", session.Ref))
	return st, nil
}

// ConfirmPayment handles the gateway's success callback. The callback is
// trusted only once the gateway itself reports the payment as paid; the
// token of record is the gateway's. The order is then built from the items
// at this moment and submitted, running to completion even if ctx is cancelled.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, ref, token string) (State, error) {
	st, pending, err := o.pendingFor(ref)
	if !pending {
		return st, err
	}
	result, err := o.gateway.Verify(ctx, ref)
	if err != nil {
		return o.State(), fmt.Errorf("verify payment %s: %w", ref, err)
	}
	if result.Token == "" {
		result.Token = token
	}
	return o.settle(ctx, ref, result)
}

// pendingFor reports whether ref is the payment currently awaited. A repeated
// callback for a payment already being handled returns the state without error.
func (o *Orchestrator) pendingFor(ref string) (State, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	att := o.attempt
	if att == nil || att.session == nil {
		return o.state, false, ErrNoPendingPayment
	}
	if att.session.Ref != ref {
		return o.state, false, ErrUnknownPayment
	}
	switch o.state.Status {
	case domain.CheckoutStatusPaymentPending:
		return o.state, true, nil
	case domain.CheckoutStatusOrderSubmission, domain.CheckoutStatusSuccess:
		return o.state, false, nil
	default:
		o.logger.Error("payment callback for a checkout that is no longer pending",
			zap.String("checkout_id", att.id), zap.String("payment_ref", ref), zap.Stringer("status", o.state.Status))
		return o.state, false, ErrNoPendingPayment
	}
}

// settle acts on the gateway's verdict for ref.
func (o *Orchestrator) settle(ctx context.Context, ref string, result *domain.PaymentResult) (State, error) {
	switch result.Status {
	case domain.PaymentStatusPaid:
		return o.confirm(ctx, ref, result.Token)
	case domain.PaymentStatusDeclined, domain.PaymentStatusCancelled:
		reason := result.Reason
		if reason == "" {
			reason = string(result.Status)
		}
		return o.FailPayment(ref, reason)
	default:
		return o.State(), ErrPaymentNotVerified
	}
}

func (o *Orchestrator) confirm(ctx context.Context, ref, token string) (State, error) {
	o.mu.Lock()
	att := o.attempt
	if att == nil || att.session == nil || att.session.Ref != ref {
		st := o.state
		o.mu.Unlock()
		return st, ErrUnknownPayment
	}
	switch o.state.Status {
	case domain.CheckoutStatusPaymentPending:
	case domain.CheckoutStatusOrderSubmission, domain.CheckoutStatusSuccess:
		st := o.state
		o.mu.Unlock()
		return st, nil
	default:
		st := o.state
		o.mu.Unlock()
		return st, ErrNoPendingPayment
	}
	stopTimer(att)

	items := att.items
	if att.fromCart {
		items = o.cart.Items()
	}
	if len(items) == 0 {
		st := o.fail(att, ErrEmptyCart)
		o.mu.Unlock()
		o.logger.Error("payment confirmed but cart is empty", zap.String("checkout_id", att.id), zap.String("payment_ref", ref))
		o.afterFailure(st)
		return st, ErrEmptyCart
	}
	fees := o.cfg.Fees.Compute(cart.Subtotal(items), att.addOns)
	if !fees.Total.Equal(att.fees.Total) {
		st := o.fail(att, ErrCartChanged)
		o.mu.Unlock()
		o.logger.Error("cart changed while payment was pending, order not placed",
			zap.String("checkout_id", att.id),
			zap.String("payment_ref", ref),
			zap.String("charged", att.fees.Total.StringFixed(2)),
			zap.String("order_total", fees.Total.StringFixed(2)))
		o.afterFailure(st)
		return st, ErrCartChanged
	}
	order := domain.Order{
		ID:           uuid.NewString(),
		CheckoutID:   att.id,
		SessionID:    o.sessionID,
		Address:      att.address,
		Phone:        att.phone,
		Items:        domain.OrderItemsFrom(items),
		Fees:         fees,
		Total:        fees.Total,
		Currency:     o.cfg.Currency,
		PaymentRef:   ref,
		PaymentToken: token,
		CreatedAt:    time.Now(),
	}
	o.transition(domain.CheckoutStatusOrderSubmission)
	st := o.state
	o.mu.Unlock()
	o.publishState(st)

	o.record(func(ctx context.Context) error {
		return o.journal.SetPayment(ctx, att.id, ref, token)
	})

	detached := context.WithoutCancel(ctx)
	receipt, err := o.submit(detached, &order)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrOrderSubmission, err)
		o.mu.Lock()
		st := o.fail(att, err)
		o.mu.Unlock()
		o.afterFailure(st)
		return st, err
	}

	if att.fromCart {
		o.cart.Clear()
	}
	o.mu.Lock()
	o.transition(domain.CheckoutStatusSuccess)
	o.state.Receipt = receipt
	st = o.state
	o.mu.Unlock()
	o.publishState(st)

	o.logger.Info("order placed", zap.String("checkout_id", att.id), zap.String("order_id", receipt.OrderID))
	o.record(func(ctx context.Context) error {
		return o.journal.CompleteCheckout(ctx, att.id, receipt.OrderID)
	})
	o.record(func(ctx context.Context) error {
		return o.events.PublishOrderPlaced(ctx, &order, receipt)
	})
	return st, nil
}

// FailPayment handles a decline or cancellation reported by the gateway.
func (o *Orchestrator) FailPayment(ref, reason string) (State, error) {
	o.mu.Lock()
	att := o.attempt
	if att == nil || att.session == nil || o.state.Status != domain.CheckoutStatusPaymentPending {
		st := o.state
		o.mu.Unlock()
		return st, ErrNoPendingPayment
	}
	if att.session.Ref != ref {
		st := o.state
		o.mu.Unlock()
		return st, ErrUnknownPayment
	}
	stopTimer(att)
	perr := &PaymentError{Reason: reason}
	st := o.fail(att, perr)
	o.mu.Unlock()
	o.afterFailure(st)
	return st, nil
}

// Resolve asks the gateway about the pending payment and acts on the answer.
// A payment the gateway still reports as pending leaves the state unchanged.
func (o *Orchestrator) Resolve(ctx context.Context) (State, error) {
	o.mu.Lock()
	att := o.attempt
	if att == nil || att.session == nil || o.state.Status != domain.CheckoutStatusPaymentPending {
		st := o.state
		o.mu.Unlock()
		return st, ErrNoPendingPayment
	}
	ref := att.session.Ref
	o.mu.Unlock()

	result, err := o.gateway.Verify(ctx, ref)
	if err != nil {
		return o.State(), fmt.Errorf("verify payment %s: %w", ref, err)
	}
	st, err := o.settle(ctx, ref, result)
	if errors.Is(err, ErrPaymentNotVerified) {
		return st, nil
	}
	return st, err
}

// Cancel abandons a pending payment. The cart is left as it was.
func (o *Orchestrator) Cancel() (State, error) {
	o.mu.Lock()
	att := o.attempt
	if att == nil || o.state.Status != domain.CheckoutStatusPaymentPending {
		st := o.state
		o.mu.Unlock()
		return st, ErrNoPendingPayment
	}
	stopTimer(att)
	st := o.fail(att, ErrPaymentCancelled)
	o.mu.Unlock()
	o.afterFailure(st)
	return st, nil
}

// Reset returns a finished checkout to IDLE.
func (o *Orchestrator) Reset() (State, error) {
	o.mu.Lock()
	if !o.state.Status.IsTerminal() {
		st := o.state
		o.mu.Unlock()
		return st, ErrIllegalTransition
	}
	st := o.reset(nil)
	o.mu.Unlock()
	o.publishState(st)
	return st, nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn for status changes and returns a function that
// removes the subscription.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	o.nextSub++
	id := o.nextSub
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) expire(att *attempt) {
	o.mu.Lock()
	if o.attempt != att || o.state.Status != domain.CheckoutStatusPaymentPending {
		o.mu.Unlock()
		return
	}
	st := o.fail(att, ErrPaymentTimeout)
	o.mu.Unlock()
	o.afterFailure(st)
}

func (o *Orchestrator) submit(ctx context.Context, order *domain.Order) (*domain.OrderReceipt, error) {
	attempt := 0
	operation := func() (*domain.OrderReceipt, error) {
		attempt++
		submitCtx := ctx
		if o.cfg.SubmitTimeout > 0 {
			var cancel context.CancelFunc
			submitCtx, cancel = context.WithTimeout(ctx, o.cfg.SubmitTimeout)
			defer cancel()
		}
		receipt, err := o.orders.CreateOrder(submitCtx, order)
		if err == nil {
			return receipt, nil
		}
		o.logger.Warn("order submission failed",
			zap.String("checkout_id", order.CheckoutID), zap.Int("attempt", attempt), zap.Error(err))
		if errors.Is(err, domain.ErrOrderRejected) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(o.cfg.SubmitBackoff)),
		backoff.WithMaxTries(o.cfg.SubmitAttempts))
}

// transition must be called with the lock held.
func (o *Orchestrator) transition(to domain.CheckoutStatus) {
	from := o.state.Status
	if !domain.CanTransitionTo(from, to) {
		o.logger.Error("illegal checkout transition", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	o.state.Status = to
}

// fail must be called with the lock held.
func (o *Orchestrator) fail(att *attempt, err error) State {
	o.transition(domain.CheckoutStatusFailed)
	o.state.Err = err
	o.logger.Info("checkout failed", zap.String("checkout_id", att.id), zap.Error(err))
	return o.state
}

// reset must be called with the lock held.
func (o *Orchestrator) reset(err error) State {
	o.state = State{Status: domain.CheckoutStatusIdle, Currency: o.cfg.Currency, Err: err}
	o.attempt = nil
	return o.state
}

func (o *Orchestrator) afterFailure(st State) {
	o.publishState(st)
	reason := ""
	if st.Err != nil {
		reason = st.Err.Error()
	}
	o.record(func(ctx context.Context) error {
		return o.journal.UpdateCheckoutStatus(ctx, st.CheckoutID, domain.CheckoutStatusFailed, reason)
	})
}

func (o *Orchestrator) publishState(st State) {
	o.mu.Lock()
	fns := make([]func(State), 0, len(o.subs))
	for i := 1; i <= o.nextSub; i++ {
		if fn, ok := o.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// record runs a best-effort side write with its own deadline.
func (o *Orchestrator) record(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JournalTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		o.logger.Warn("checkout side write failed", zap.Error(err))
	}
}

func stopTimer(att *attempt) {
	if att.timer != nil {
		att.timer.Stop()
	}
}
