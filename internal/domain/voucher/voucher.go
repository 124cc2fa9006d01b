// Package voucher defines shop-issued discount codes and their validation.
package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountFixed subtracts a fixed amount from the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercent subtracts a percentage of the subtotal at the time
	// the voucher is applied.
	DiscountPercent DiscountType = "percent"
)

var (
	// ErrNotFound is returned when no voucher matches the code for the shop.
	ErrNotFound = errors.New("voucher not found")
	// ErrExpired is returned when the voucher's expiry is in the past.
	ErrExpired = errors.New("voucher expired")
)

// Voucher is a shop-issued discount code.
type Voucher struct {
	ID           int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Expired      time.Time
}

// Amount computes the discount this voucher grants against the given
// subtotal. The result is frozen by the caller at application time and is
// not recomputed when the subtotal later changes.
func (v *Voucher) Amount(subtotal decimal.Decimal) decimal.Decimal {
	if v.DiscountType == DiscountFixed {
		return v.Value
	}
	return subtotal.Mul(v.Value).Div(decimal.NewFromInt(100))
}

// Finder looks a voucher up by code within a shop.
type Finder interface {
	FindVoucher(ctx context.Context, code string, shopID int64) (*Voucher, error)
}
