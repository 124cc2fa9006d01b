package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order as stored by the backend.
// Transitions are forward-only; once Paid the client never moves the
// order again.
type Status int

const (
	StatusPending   Status = 0
	StatusPaid      Status = 1
	StatusAbandoned Status = 2
)

// String returns the backend-facing name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Detail is a single line item on an order.
type Detail struct {
	ProductID     int64           `json:"productId"`
	ProductName   string          `json:"productName,omitempty"`
	ProductUnitID int64           `json:"productUnitId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// LineTotal returns unit price times quantity minus the per-line discount.
func (d Detail) LineTotal() decimal.Decimal {
	qty := decimal.NewFromInt(int64(d.Quantity))
	return d.UnitPrice.Mul(qty).Sub(d.DiscountValue)
}

// Order is the central entity of the payment workflow. ID 0 means the order
// has not been created on the backend yet.
type Order struct {
	ID         int64           `json:"orderId"`
	Status     Status          `json:"status"`
	ShopID     int64           `json:"shopId"`
	ShiftID    int64           `json:"shiftId"`
	CustomerID *int64          `json:"customerId"`
	Method     Method          `json:"paymentMethod"`
	Details    []Detail        `json:"orderDetails"`
	Discount   decimal.Decimal `json:"discount"`
	VoucherID  *int64          `json:"voucherId,omitempty"`
	Note       string          `json:"note"`
	CreatedAt  time.Time       `json:"createdAt,omitzero"`
}

// Subtotal sums the line totals of all details before any order-level
// discount.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, d := range o.Details {
		sum = sum.Add(d.LineTotal())
	}
	return sum
}

// Snapshot clones the order for caching. The detail slice is copied so later
// edits to the live order do not leak into the cache.
func (o *Order) Snapshot() *Order {
	cp := *o
	cp.Details = make([]Detail, len(o.Details))
	copy(cp.Details, o.Details)
	return &cp
}
