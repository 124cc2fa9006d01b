// Package payload assembles canonical order-update payloads from multiple,
// possibly stale, possibly partial sources.
package payload

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/session"
)

// Fetcher reads authoritative order state from the backend.
type Fetcher interface {
	GetOrderHead(ctx context.Context, orderID, shiftID, shopID int64) (*order.Order, error)
	ListOrderDetails(ctx context.Context, orderID int64) ([]order.Detail, error)
}

// Overrides is a partial patch applied with highest precedence. Nil fields
// are not overridden.
type Overrides struct {
	Status     *order.Status
	Method     *order.Method
	CustomerID *int64
	Discount   *decimal.Decimal
	VoucherID  *int64
	Note       *string
	Details    []order.Detail
}

// Builder merges order state in strict precedence order: caller overrides,
// then the fetched backend head, then the cached last-order snapshot, then
// live in-memory state, then session defaults.
type Builder struct {
	fetcher Fetcher
	sess    *session.Session
}

// NewBuilder creates a Builder.
func NewBuilder(fetcher Fetcher, sess *session.Session) *Builder {
	return &Builder{fetcher: fetcher, sess: sess}
}

// Build produces a complete update payload for orderID. Every field is
// populated with the best value any source supplied; an empty detail list is
// returned as-is when no source has lines (non-empty validation is the
// backend's job). The merge itself is pure; at most one detail fetch is
// issued when neither live state nor the cache has lines.
func (b *Builder) Build(ctx context.Context, orderID int64, live *order.Order, ov Overrides) (*order.Order, error) {
	if orderID <= 0 {
		return nil, errors.New("payload requires a created order id")
	}

	// Head fetch is best-effort: a stale cache beats a failed request.
	var head *order.Order
	if prof, ok := b.sess.Profile(); ok {
		if shift, ok := b.sess.Shift(); ok {
			h, err := b.fetcher.GetOrderHead(ctx, orderID, shift.ID, prof.ShopID)
			if err != nil {
				zctx.From(ctx).Debug("order head fetch failed, merging without it",
					zap.Int64("order_id", orderID), zap.Error(err))
			} else {
				head = h
			}
		}
	}

	cached, _ := b.sess.LastOrder()
	if cached != nil && cached.ID != orderID {
		// The cache belongs to some other order; ignore it.
		cached = nil
	}

	out := &order.Order{ID: orderID}
	out.ShopID = firstID(shopIDOf(head), shopIDOf(cached), shopIDOf(live), b.defaultShopID())
	out.ShiftID = firstID(shiftIDOf(head), shiftIDOf(cached), shiftIDOf(live), b.defaultShiftID())

	out.Status = order.StatusPending
	for _, src := range []*order.Order{live, cached, head} {
		if src != nil {
			out.Status = src.Status
		}
	}
	if ov.Status != nil {
		out.Status = *ov.Status
	}

	var rawMethod any
	for _, src := range []*order.Order{live, cached, head} {
		if src != nil && src.Method != order.MethodUnknown {
			rawMethod = src.Method
		}
	}
	if ov.Method != nil {
		rawMethod = *ov.Method
	}
	out.Method = order.NormalizeMethod(rawMethod)

	out.CustomerID = firstCustomer(ov.CustomerID, customerOf(head), customerOf(cached), customerOf(live))
	out.VoucherID = firstCustomer(ov.VoucherID, voucherOf(head), voucherOf(cached), voucherOf(live))

	out.Discount = decimal.Zero
	for _, src := range []*order.Order{live, cached, head} {
		if src != nil && !src.Discount.IsZero() {
			out.Discount = src.Discount
		}
	}
	if ov.Discount != nil {
		out.Discount = *ov.Discount
	}

	for _, src := range []*order.Order{live, cached, head} {
		if src != nil && src.Note != "" {
			out.Note = src.Note
		}
	}
	if ov.Note != nil {
		out.Note = *ov.Note
	}

	details, err := b.resolveDetails(ctx, orderID, live, cached, ov)
	if err != nil {
		return nil, err
	}
	out.Details = details

	return out, nil
}

// resolveDetails picks line items in their own precedence order: explicit
// override, live state, cached snapshot, then a single backend fetch. Each
// fallback is tried only when the prior source yielded no lines.
func (b *Builder) resolveDetails(ctx context.Context, orderID int64, live, cached *order.Order, ov Overrides) ([]order.Detail, error) {
	if len(ov.Details) > 0 {
		return ov.Details, nil
	}
	if live != nil && len(live.Details) > 0 {
		return live.Details, nil
	}
	if cached != nil && len(cached.Details) > 0 {
		return cached.Details, nil
	}

	details, err := b.fetcher.ListOrderDetails(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch detail fallback")
	}
	if details == nil {
		details = []order.Detail{}
	}
	return details, nil
}

func (b *Builder) defaultShopID() int64 {
	if prof, ok := b.sess.Profile(); ok {
		return prof.ShopID
	}
	return 0
}

func (b *Builder) defaultShiftID() int64 {
	if shift, ok := b.sess.Shift(); ok {
		return shift.ID
	}
	return 0
}

func firstID(vals ...int64) int64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstCustomer(vals ...*int64) *int64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func shopIDOf(o *order.Order) int64 {
	if o == nil {
		return 0
	}
	return o.ShopID
}

func shiftIDOf(o *order.Order) int64 {
	if o == nil {
		return 0
	}
	return o.ShiftID
}

func customerOf(o *order.Order) *int64 {
	if o == nil {
		return nil
	}
	return o.CustomerID
}

func voucherOf(o *order.Order) *int64 {
	if o == nil {
		return nil
	}
	return o.VoucherID
}
