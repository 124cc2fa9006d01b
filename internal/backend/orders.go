package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/vietshop/posterm/internal/domain/order"
)

// CreateOrder POSTs a new order and returns the server-assigned id.
func (c *Client) CreateOrder(ctx context.Context, o *order.Order) (int64, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/orders", nil, o)
	if err != nil {
		return 0, errors.Wrap(err, "create order")
	}

	id, ok := extractOrderID(raw)
	if !ok {
		return 0, ErrNoOrderID
	}
	return id, nil
}

// UpdateOrder PUTs the full payload onto an existing order. Used both for
// "set payment method" (status stays Pending) and for finalizing to Paid or
// Abandoned.
func (c *Client) UpdateOrder(ctx context.Context, o *order.Order) error {
	if o.ID <= 0 {
		return errors.New("update requires an order id")
	}
	_, err := c.do(ctx, http.MethodPut, "/api/orders/"+strconv.FormatInt(o.ID, 10), nil, o)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	return nil
}

// GetOrderHead fetches the authoritative order record, scoped to the shift
// and shop so a terminal can only see its own orders.
func (c *Client) GetOrderHead(ctx context.Context, orderID, shiftID, shopID int64) (*order.Order, error) {
	q := url.Values{
		"OrderId":  {strconv.FormatInt(orderID, 10)},
		"ShiftId":  {strconv.FormatInt(shiftID, 10)},
		"ShopId":   {strconv.FormatInt(shopID, 10)},
		"page":     {"1"},
		"pageSize": {"1"},
	}
	raw, err := c.do(ctx, http.MethodGet, "/api/orders", q, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get order head")
	}

	var heads []order.Order
	if err := decodeItems(raw, &heads); err != nil {
		return nil, errors.Wrap(err, "decode order head")
	}
	if len(heads) == 0 {
		return nil, errors.Errorf("order %d not found", orderID)
	}
	return &heads[0], nil
}

// ListOrderDetails fetches the persisted line items for an order, for when
// they are no longer available locally.
func (c *Client) ListOrderDetails(ctx context.Context, orderID int64) ([]order.Detail, error) {
	q := url.Values{
		"OrderId":  {strconv.FormatInt(orderID, 10)},
		"page":     {"1"},
		"pageSize": {"100"},
	}
	raw, err := c.do(ctx, http.MethodGet, "/api/order-details", q, nil)
	if err != nil {
		return nil, errors.Wrap(err, "list order details")
	}

	var details []order.Detail
	if err := decodeItems(raw, &details); err != nil {
		return nil, errors.Wrap(err, "decode order details")
	}
	return details, nil
}
