// Package payment drives one order through the payment workflow: tab
// selection, order creation, QR polling, checkout, and abandonment. It is
// the state machine the cashier UI used to keep implicit in view lifecycle
// hooks, made explicit and framework-free.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vietshop/posterm/internal/discount"
	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/payload"
	"github.com/vietshop/posterm/internal/session"
)

const (
	pollInitial = 300 * time.Millisecond
	pollMax     = time.Second
)

var (
	// ErrNoShiftContext blocks order creation when shop or shift are missing
	// from the session.
	ErrNoShiftContext = errors.New("no open shift or shop context")
	// ErrAlreadyFinalized rejects a second checkout of the same session.
	ErrAlreadyFinalized = errors.New("order already finalized")
	// ErrInsufficientTender rejects a cash checkout short of the payable
	// amount.
	ErrInsufficientTender = errors.New("received amount below payable total")
)

// Backend is the slice of the shop backend the controller drives.
type Backend interface {
	CreateOrder(ctx context.Context, o *order.Order) (int64, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
	GetOrderHead(ctx context.Context, orderID, shiftID, shopID int64) (*order.Order, error)
	QRImageURL(ctx context.Context, orderID int64) (string, error)
}

// ReceiptPrinter delivers a receipt for a finalized order. Failures must be
// non-fatal to checkout.
type ReceiptPrinter interface {
	PrintReceipt(ctx context.Context, o *order.Order, received, change decimal.Decimal) error
}

// EventType tags workflow events pushed to the cashier UI.
type EventType string

const (
	// EventPaid fires exactly once per session when checkout finalizes; the
	// UI treats it as the navigate-to-orders signal.
	EventPaid EventType = "paid"
	// EventAbandoned fires when the session's order was demoted on exit.
	EventAbandoned EventType = "abandoned"
	// EventTabChanged mirrors the active tab for other terminal views.
	EventTabChanged EventType = "tab_changed"
)

// Event is a workflow state change.
type Event struct {
	Type    EventType `json:"type"`
	OrderID int64     `json:"orderId,omitempty"`
	Tab     order.Tab `json:"tab,omitempty"`
}

// Emitter publishes workflow events.
type Emitter interface {
	Publish(Event)
}

type noopEmitter struct{}

func (noopEmitter) Publish(Event) {}

// Deps bundles the controller's collaborators.
type Deps struct {
	Backend Backend
	Builder *payload.Builder
	Session *session.Session
	Engine  *discount.Engine
	Printer ReceiptPrinter
	Events  Emitter
}

// Controller owns one payment session. All exported methods are safe for
// concurrent use; overlapping flows are serialized with flags and a
// single-flight create, not hard aborts.
type Controller struct {
	backend Backend
	builder *payload.Builder
	sess    *session.Session
	engine  *discount.Engine
	guard   *Guard
	printer ReceiptPrinter
	events  Emitter

	// sleep is swapped out in tests to make polling instantaneous.
	sleep func(ctx context.Context, d time.Duration) error

	createGroup singleflight.Group

	mu      sync.Mutex
	live    *order.Order
	basket  *discount.Basket
	tab     order.Tab
	qrURL   string
	visible bool
	pollGen uint64
}

// NewController opens a payment session over the given line items. It fails
// when no shop/shift context is available, since nothing can be created
// without one.
func NewController(deps Deps, details []order.Detail, customerID *int64, note string) (*Controller, error) {
	prof, okProfile := deps.Session.Profile()
	shift, okShift := deps.Session.Shift()
	if !okProfile || !okShift || prof.ShopID <= 0 || shift.ID <= 0 {
		return nil, ErrNoShiftContext
	}

	events := deps.Events
	if events == nil {
		events = noopEmitter{}
	}

	live := &order.Order{
		Status:     order.StatusPending,
		ShopID:     prof.ShopID,
		ShiftID:    shift.ID,
		CustomerID: customerID,
		Details:    details,
		Note:       note,
	}

	return &Controller{
		backend: deps.Backend,
		builder: deps.Builder,
		sess:    deps.Session,
		engine:  deps.Engine,
		guard:   NewGuard(deps.Builder, deps.Backend),
		printer: deps.Printer,
		events:  events,
		sleep:   sleepCtx,
		live:    live,
		basket:  discount.NewBasket(live.Subtotal()),
		visible: true,
	}, nil
}

// OrderID returns the backend id of the session's order, or 0 before
// creation.
func (c *Controller) OrderID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.ID
}

// SelectTab switches the active payment method tab. The selection is applied
// optimistically and persisted so a reload restores it; the order is created
// on first touch, the method is registered on the backend, and the QR flow
// starts or stops as the tab demands.
func (c *Controller) SelectTab(ctx context.Context, tab order.Tab) error {
	c.mu.Lock()
	prev := c.tab
	c.tab = tab
	c.mu.Unlock()

	if err := c.sess.SetActiveTab(tab); err != nil {
		zctx.From(ctx).Warn("persist active tab failed", zap.Error(err))
	}
	if prev == order.TabQR && tab != order.TabQR {
		c.stopPolling()
	}
	c.events.Publish(Event{Type: EventTabChanged, Tab: tab})

	id, err := c.ensureOrder(ctx)
	if err != nil {
		return err
	}
	if err := c.ensureMethod(ctx, id, tab.Method()); err != nil {
		return err
	}

	if tab == order.TabQR {
		return c.beginQR(ctx, id)
	}
	return nil
}

// ensureOrder creates the backend order the first time a payment tab is
// touched. Creation is serialized behind a single flight so two tab
// switches racing before the first create resolves cannot double-create.
func (c *Controller) ensureOrder(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if id := c.live.ID; id > 0 {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	v, err, _ := c.createGroup.Do("create", func() (any, error) {
		c.mu.Lock()
		if id := c.live.ID; id > 0 {
			c.mu.Unlock()
			return id, nil
		}
		draft := c.live.Snapshot()
		draft.Method = c.tab.Method()
		draft.Discount = c.basket.TotalDiscount()
		c.mu.Unlock()

		draft.Status = order.StatusPending
		c.guard.BeginCreate()
		id, err := c.backend.CreateOrder(ctx, draft)
		if err != nil {
			return int64(0), errors.Wrap(err, "create order")
		}

		c.mu.Lock()
		c.live.ID = id
		snap := c.live.Snapshot()
		c.mu.Unlock()

		if err := c.sess.SetLastOrder(snap); err != nil {
			zctx.From(ctx).Warn("cache last order failed", zap.Error(err))
		}
		zctx.From(ctx).Info("order created", zap.Int64("order_id", id))
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ensureMethod registers the selected payment method on the order; status
// stays Pending.
func (c *Controller) ensureMethod(ctx context.Context, id int64, m order.Method) error {
	c.mu.Lock()
	c.live.Method = m
	live := c.live.Snapshot()
	c.mu.Unlock()

	pending := order.StatusPending
	p, err := c.builder.Build(ctx, id, live, payload.Overrides{Method: &m, Status: &pending})
	if err != nil {
		return err
	}
	if err := c.backend.UpdateOrder(ctx, p); err != nil {
		return errors.Wrap(err, "register payment method")
	}

	if err := c.sess.SetLastOrder(live); err != nil {
		zctx.From(ctx).Warn("cache last order failed", zap.Error(err))
	}
	return nil
}

// beginQR fetches a fresh QR image URL and starts status polling.
func (c *Controller) beginQR(ctx context.Context, id int64) error {
	url, err := c.backend.QRImageURL(ctx, id)
	if err != nil {
		return errors.Wrap(err, "qr flow")
	}

	c.mu.Lock()
	c.qrURL = url
	c.mu.Unlock()

	c.startPolling(ctx, id)
	return nil
}

// startPolling launches a polling loop for the current activation. Bumping
// the generation first guarantees at most one live loop per session.
func (c *Controller) startPolling(ctx context.Context, orderID int64) {
	c.mu.Lock()
	c.pollGen++
	gen := c.pollGen
	c.mu.Unlock()

	// The loop outlives the HTTP request that started it; it is stopped by
	// the generation flag, not by request cancellation.
	go c.pollLoop(context.WithoutCancel(ctx), gen, orderID)
}

// stopPolling invalidates any running loop. Idempotent.
func (c *Controller) stopPolling() {
	c.mu.Lock()
	c.pollGen++
	c.mu.Unlock()
}

// pollActive reports whether the loop of the given generation should keep
// running. Checked before every side-effecting step.
func (c *Controller) pollActive(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollGen == gen && c.tab == order.TabQR && c.visible
}

// pollLoop re-fetches the order head with exponential backoff until the
// provider marks it paid or the activation is cancelled. In-flight requests
// are never hard-aborted; cancellation is observed between iterations.
func (c *Controller) pollLoop(ctx context.Context, gen uint64, orderID int64) {
	prof, _ := c.sess.Profile()
	shift, _ := c.sess.Shift()

	delay := pollInitial
	for {
		if !c.pollActive(gen) {
			return
		}
		if err := c.sleep(ctx, delay); err != nil {
			return
		}
		if !c.pollActive(gen) {
			return
		}

		head, err := c.backend.GetOrderHead(ctx, orderID, shift.ID, prof.ShopID)
		if err != nil {
			zctx.From(ctx).Debug("qr poll failed", zap.Int64("order_id", orderID), zap.Error(err))
		} else if head.Status == order.StatusPaid {
			c.finalizeQR(ctx, head)
			return
		}

		delay *= 2
		if delay > pollMax {
			delay = pollMax
		}
	}
}

// finalizeQR completes checkout after the provider confirmed payment. The
// guard makes this run at most once even if a stale loop observes Paid too.
func (c *Controller) finalizeQR(ctx context.Context, head *order.Order) {
	if !c.guard.MarkPaid() {
		return
	}
	c.stopPolling()

	c.mu.Lock()
	c.live.Status = order.StatusPaid
	snap := c.live.Snapshot()
	c.mu.Unlock()

	if err := c.sess.SetLastOrder(snap); err != nil {
		zctx.From(ctx).Warn("cache last order failed", zap.Error(err))
	}
	c.print(ctx, snap, decimal.Zero, decimal.Zero)
	c.events.Publish(Event{Type: EventPaid, OrderID: head.ID, Tab: order.TabQR})
	zctx.From(ctx).Info("qr payment confirmed", zap.Int64("order_id", head.ID))
}

// CashResult reports the money movement of a cash checkout.
type CashResult struct {
	Received decimal.Decimal `json:"received"`
	Total    decimal.Decimal `json:"total"`
	Change   decimal.Decimal `json:"change"`
	Shortage decimal.Decimal `json:"shortage"`
}

// CheckoutCash finalizes the order as a cash payment. The paid flag is
// claimed synchronously before any backend call so a concurrent abandon
// trigger cannot interleave.
func (c *Controller) CheckoutCash(ctx context.Context, received decimal.Decimal) (*CashResult, error) {
	c.mu.Lock()
	change, shortage := c.basket.CashTender(received)
	total := c.basket.TotalAfter()
	c.mu.Unlock()

	res := &CashResult{Received: received, Total: total, Change: change, Shortage: shortage}
	if shortage.IsPositive() {
		return res, ErrInsufficientTender
	}

	if !c.guard.MarkPaid() {
		return res, ErrAlreadyFinalized
	}
	c.stopPolling()

	id, err := c.ensureOrder(ctx)
	if err != nil {
		return res, err
	}

	c.mu.Lock()
	c.live.Status = order.StatusPaid
	c.live.Method = order.MethodCash
	c.live.Discount = c.basket.TotalDiscount()
	live := c.live.Snapshot()
	c.mu.Unlock()

	paid := order.StatusPaid
	cash := order.MethodCash
	disc := live.Discount
	p, err := c.builder.Build(ctx, id, live, payload.Overrides{Status: &paid, Method: &cash, Discount: &disc})
	if err != nil {
		return res, err
	}
	if err := c.backend.UpdateOrder(ctx, p); err != nil {
		return res, errors.Wrap(err, "finalize order")
	}

	if err := c.sess.SetLastOrder(live); err != nil {
		zctx.From(ctx).Warn("cache last order failed", zap.Error(err))
	}
	c.print(ctx, live, received, change)
	c.events.Publish(Event{Type: EventPaid, OrderID: id, Tab: order.TabCash})
	zctx.From(ctx).Info("cash checkout complete", zap.Int64("order_id", id))
	return res, nil
}

// print delivers the receipt; failures are logged and surfaced nowhere else.
func (c *Controller) print(ctx context.Context, o *order.Order, received, change decimal.Decimal) {
	if c.printer == nil {
		return
	}
	if err := c.printer.PrintReceipt(ctx, o, received, change); err != nil {
		zctx.From(ctx).Warn("receipt print failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

// ApplyVoucher validates and freezes a voucher discount onto the session.
func (c *Controller) ApplyVoucher(ctx context.Context, code string) error {
	c.mu.Lock()
	shopID := c.live.ShopID
	basket := c.basket
	c.mu.Unlock()

	if err := c.engine.ApplyVoucher(ctx, basket, code, shopID); err != nil {
		return err
	}

	c.mu.Lock()
	v := basket.Voucher()
	c.live.VoucherID = &v.ID
	c.live.Discount = basket.TotalDiscount()
	c.mu.Unlock()
	return nil
}

// RemoveVoucher clears the voucher component only.
func (c *Controller) RemoveVoucher() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.basket.RemoveVoucher()
	c.live.VoucherID = nil
	c.live.Discount = c.basket.TotalDiscount()
}

// SetManualPercent freezes a manual percentage discount.
func (c *Controller) SetManualPercent(percent decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.basket.ApplyManualPercent(percent)
	c.live.Discount = c.basket.TotalDiscount()
}

// SetDetails replaces the checkout's line items. Already-applied discount
// amounts stay frozen at their quoted values.
func (c *Controller) SetDetails(details []order.Detail) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.live.Details = details
	c.basket.SetSubtotal(c.live.Subtotal())
}

// Hide pauses the workflow while the terminal view is not visible; QR
// polling stops rather than hammering the backend from a background tab.
func (c *Controller) Hide() {
	c.mu.Lock()
	c.visible = false
	c.mu.Unlock()
	c.stopPolling()
}

// Show resumes the workflow. On the QR tab the flow is restarted with a
// fresh QR image instead of resumed blindly, since the old code may have
// gone stale while hidden.
func (c *Controller) Show(ctx context.Context) error {
	c.mu.Lock()
	c.visible = true
	tab := c.tab
	id := c.live.ID
	c.mu.Unlock()

	if tab == order.TabQR && id > 0 && !c.guard.IsPaid() {
		return c.beginQR(ctx, id)
	}
	return nil
}

// Abandon demotes the order on explicit back/cancel navigation. Safe to
// call again from teardown; at most one abandon PUT is ever issued and a
// paid order is never demoted.
func (c *Controller) Abandon(ctx context.Context) {
	c.stopPolling()

	c.mu.Lock()
	live := c.live.Snapshot()
	c.mu.Unlock()

	// The id may have materialized while MarkAbandoned waited for it, so
	// re-read it for the event rather than trusting the earlier snapshot.
	if c.guard.MarkAbandoned(ctx, c.OrderID, live) {
		c.events.Publish(Event{Type: EventAbandoned, OrderID: c.OrderID()})
	}
}

// Close tears the session down, abandoning the order unless it was paid.
func (c *Controller) Close(ctx context.Context) {
	c.Abandon(ctx)
}

// State is a UI-facing snapshot of the session.
type State struct {
	OrderID        int64           `json:"orderId"`
	Tab            order.Tab       `json:"tab"`
	Status         order.Status    `json:"status"`
	QRImageURL     string          `json:"qrImageUrl,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	VoucherCode    string          `json:"voucherCode,omitempty"`
	VoucherAmount  decimal.Decimal `json:"voucherAmount"`
	ManualPercent  decimal.Decimal `json:"manualPercent"`
	ManualAmount   decimal.Decimal `json:"manualAmount"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	TotalAfter     decimal.Decimal `json:"totalAfter"`
	Paid           bool            `json:"paid"`
	Abandoned      bool            `json:"abandoned"`
}

// State returns a consistent snapshot for the UI.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		OrderID:       c.live.ID,
		Tab:           c.tab,
		Status:        c.live.Status,
		QRImageURL:    c.qrURL,
		Subtotal:      c.basket.Subtotal(),
		VoucherAmount: c.basket.VoucherAmount(),
		ManualPercent: c.basket.ManualPercent(),
		ManualAmount:  c.basket.ManualAmount(),
		TotalDiscount: c.basket.TotalDiscount(),
		TotalAfter:    c.basket.TotalAfter(),
		Paid:          c.guard.IsPaid(),
		Abandoned:     c.guard.DidAbandon(),
	}
	if v := c.basket.Voucher(); v != nil {
		st.VoucherCode = v.Code
	}
	return st
}
