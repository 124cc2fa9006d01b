// Package discount resolves the total discount applied to an order's
// subtotal from two independent sources: a validated voucher and a manually
// entered percentage.
package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietshop/posterm/internal/domain/voucher"
)

var hundred = decimal.NewFromInt(100)

// Basket tracks the discount state for one payment session. Discount
// amounts are frozen against the subtotal at the time each discount is
// entered; editing line items afterwards does NOT rescale them. That is
// intentional snapshot semantics, not drift.
type Basket struct {
	subtotal decimal.Decimal

	voucher       *voucher.Voucher
	voucherAmount decimal.Decimal

	manualPercent decimal.Decimal
	manualAmount  decimal.Decimal
}

// NewBasket creates a basket over the given subtotal.
func NewBasket(subtotal decimal.Decimal) *Basket {
	return &Basket{subtotal: subtotal}
}

// SetSubtotal replaces the subtotal after line item edits. Frozen discount
// amounts are kept as-is.
func (b *Basket) SetSubtotal(subtotal decimal.Decimal) {
	b.subtotal = subtotal
}

// Subtotal returns the current pre-discount subtotal.
func (b *Basket) Subtotal() decimal.Decimal {
	return b.subtotal
}

// Voucher returns the applied voucher, or nil.
func (b *Basket) Voucher() *voucher.Voucher {
	return b.voucher
}

// VoucherAmount returns the frozen voucher discount.
func (b *Basket) VoucherAmount() decimal.Decimal {
	return b.voucherAmount
}

// ManualPercent returns the manual discount percentage.
func (b *Basket) ManualPercent() decimal.Decimal {
	return b.manualPercent
}

// ManualAmount returns the frozen manual discount.
func (b *Basket) ManualAmount() decimal.Decimal {
	return b.manualAmount
}

// ApplyManualPercent sets the manual percentage discount. The percentage is
// clamped to [0, 100] and the amount is computed against the subtotal now
// and frozen. Reapplying recomputes only the manual component.
func (b *Basket) ApplyManualPercent(percent decimal.Decimal) {
	if percent.IsNegative() {
		percent = decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	b.manualPercent = percent
	b.manualAmount = b.subtotal.Mul(percent).Div(hundred)
}

// RemoveVoucher clears only the voucher component.
func (b *Basket) RemoveVoucher() {
	b.voucher = nil
	b.voucherAmount = decimal.Zero
}

// TotalDiscount is the sum of the frozen voucher and manual amounts.
func (b *Basket) TotalDiscount() decimal.Decimal {
	return b.voucherAmount.Add(b.manualAmount)
}

// TotalAfter is the payable amount: subtotal minus total discount, never
// negative.
func (b *Basket) TotalAfter() decimal.Decimal {
	total := b.subtotal.Sub(b.TotalDiscount())
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// CashTender computes change and shortage for a cash payment against the
// payable amount.
func (b *Basket) CashTender(received decimal.Decimal) (change, shortage decimal.Decimal) {
	due := b.TotalAfter()
	change = received.Sub(due)
	if change.IsNegative() {
		return decimal.Zero, due.Sub(received)
	}
	return change, decimal.Zero
}

// Engine validates voucher codes and applies them to baskets.
type Engine struct {
	finder    voucher.Finder
	prefilter *voucher.Prefilter
	now       func() time.Time
}

// NewEngine creates an Engine. prefilter may be nil, in which case every
// code goes to the backend.
func NewEngine(finder voucher.Finder, prefilter *voucher.Prefilter) *Engine {
	return &Engine{finder: finder, prefilter: prefilter, now: time.Now}
}

// ApplyVoucher validates code for the shop and freezes its discount amount
// into the basket. It returns voucher.ErrNotFound for unknown codes (a
// prefilter miss short-circuits the lookup) and voucher.ErrExpired for
// codes past their expiry; in both cases the basket is unchanged.
func (e *Engine) ApplyVoucher(ctx context.Context, b *Basket, code string, shopID int64) error {
	if !e.prefilter.MayContain(code) {
		return voucher.ErrNotFound
	}

	v, err := e.finder.FindVoucher(ctx, code, shopID)
	if err != nil {
		return err
	}
	if e.now().After(v.Expired) {
		return voucher.ErrExpired
	}

	b.voucher = v
	b.voucherAmount = v.Amount(b.subtotal)
	return nil
}
