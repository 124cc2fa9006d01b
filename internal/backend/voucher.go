package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vietshop/posterm/internal/domain/voucher"
)

// voucherRecord is the backend wire shape of a voucher.
type voucherRecord struct {
	VoucherID    int64           `json:"voucherId"`
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Value        decimal.Decimal `json:"discountValue"`
	Expired      time.Time       `json:"expired"`
}

// FindVoucher looks a voucher code up within a shop. It returns
// voucher.ErrNotFound when no record matches; expiry is the caller's concern
// so an expired voucher is still returned.
func (c *Client) FindVoucher(ctx context.Context, code string, shopID int64) (*voucher.Voucher, error) {
	q := url.Values{
		"Code":   {code},
		"ShopId": {strconv.FormatInt(shopID, 10)},
	}
	raw, err := c.do(ctx, http.MethodGet, "/api/vouchers", q, nil)
	if err != nil {
		return nil, errors.Wrap(err, "find voucher")
	}

	var records []voucherRecord
	if err := decodeItems(raw, &records); err != nil {
		return nil, errors.Wrap(err, "decode vouchers")
	}
	if len(records) == 0 {
		return nil, voucher.ErrNotFound
	}

	r := records[0]
	dt := voucher.DiscountType(r.DiscountType)
	if dt != voucher.DiscountFixed {
		dt = voucher.DiscountPercent
	}
	return &voucher.Voucher{
		ID:           r.VoucherID,
		Code:         r.Code,
		DiscountType: dt,
		Value:        r.Value,
		Expired:      r.Expired,
	}, nil
}
