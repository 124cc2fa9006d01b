package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/payload"
)

const (
	// abandonWaitMax bounds how long an abandon call waits for the order id
	// to materialize when a create is still in flight.
	abandonWaitMax = 5 * time.Second
	// abandonWaitStep is the id re-check interval during that wait.
	abandonWaitStep = 100 * time.Millisecond
)

// OrderUpdater is the single backend write the guard needs.
type OrderUpdater interface {
	UpdateOrder(ctx context.Context, o *order.Order) error
}

// Guard guarantees a clean terminal state for an order: pending→paid exactly
// once, or pending→abandoned on exit, never both, and never abandoning a
// paid order. Both flags are write-once-true.
type Guard struct {
	builder *payload.Builder
	updater OrderUpdater

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu              sync.Mutex
	isPaid          bool
	didAbandon      bool
	abandonInFlight bool
	createStarted   bool
}

// NewGuard creates a Guard.
func NewGuard(builder *payload.Builder, updater OrderUpdater) *Guard {
	return &Guard{
		builder: builder,
		updater: updater,
		sleep:   sleepCtx,
	}
}

// MarkPaid flips the paid flag. It must be called synchronously before any
// blocking work in a checkout path so a racing abandon trigger is preempted.
// The first call returns true; later calls return false, which callers use
// to finalize exactly once.
func (g *Guard) MarkPaid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isPaid {
		return false
	}
	g.isPaid = true
	return true
}

// BeginCreate records that an order create call has been issued. A racing
// abandon only waits for the id when one may still materialize.
func (g *Guard) BeginCreate() {
	g.mu.Lock()
	g.createStarted = true
	g.mu.Unlock()
}

// IsPaid reports whether checkout has claimed this order.
func (g *Guard) IsPaid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isPaid
}

// DidAbandon reports whether an abandon PUT has succeeded.
func (g *Guard) DidAbandon() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.didAbandon
}

// MarkAbandoned demotes the order to Abandoned on the backend and reports
// whether this call performed the demotion. It no-ops if the order is paid,
// already abandoned, an abandon is already in flight, or no order id can be
// resolved within the wait ceiling. The PUT runs on a context detached from
// cancellation so it survives teardown of the view that triggered it.
// Failures are logged only; the user is already gone.
func (g *Guard) MarkAbandoned(ctx context.Context, orderID func() int64, live *order.Order) bool {
	g.mu.Lock()
	if g.isPaid || g.didAbandon || g.abandonInFlight {
		g.mu.Unlock()
		return false
	}
	g.abandonInFlight = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.abandonInFlight = false
		g.mu.Unlock()
	}()

	id := g.waitForOrderID(ctx, orderID)
	if id <= 0 {
		zctx.From(ctx).Debug("abandon skipped, no order id resolved")
		return false
	}

	// A paid flag may have been raced in while we waited for the id.
	g.mu.Lock()
	if g.isPaid {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	// Detached context: the PUT must be allowed to complete even while the
	// invoking workflow is being torn down.
	putCtx := context.WithoutCancel(ctx)

	abandoned := order.StatusAbandoned
	p, err := g.builder.Build(putCtx, id, live, payload.Overrides{Status: &abandoned})
	if err != nil {
		zctx.From(ctx).Warn("abandon payload build failed", zap.Int64("order_id", id), zap.Error(err))
		return false
	}
	p.Method = order.NormalizeMethod(p.Method)

	if err := g.updater.UpdateOrder(putCtx, p); err != nil {
		zctx.From(ctx).Warn("abandon update failed", zap.Int64("order_id", id), zap.Error(err))
		return false
	}

	g.mu.Lock()
	g.didAbandon = true
	g.mu.Unlock()

	zctx.From(ctx).Info("order abandoned", zap.Int64("order_id", id))
	return true
}

// waitForOrderID polls the id source until it yields a positive id or the
// wait ceiling passes. A create-order call racing with teardown usually
// resolves within a request round-trip. When no create was ever started
// there is nothing to wait for and the wait is skipped entirely.
func (g *Guard) waitForOrderID(ctx context.Context, orderID func() int64) int64 {
	if id := orderID(); id > 0 {
		return id
	}

	g.mu.Lock()
	started := g.createStarted
	g.mu.Unlock()
	if !started {
		return 0
	}

	deadline := time.Now().Add(abandonWaitMax)
	for time.Now().Before(deadline) {
		if err := g.sleep(ctx, abandonWaitStep); err != nil {
			// Context cancelled: one last look before giving up.
			return orderID()
		}
		if id := orderID(); id > 0 {
			return id
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
