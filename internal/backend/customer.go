package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
)

// customerRecord is the subset of the customer resource the terminal needs.
type customerRecord struct {
	CustomerID int64  `json:"customerId"`
	Name       string `json:"customerName"`
	Phone      string `json:"phone,omitempty"`
}

// CustomerName resolves a display name for a known customer id. An unknown
// id resolves to "" so walk-in handling stays uniform.
func (c *Client) CustomerName(ctx context.Context, customerID int64) (string, error) {
	q := url.Values{"CustomerId": {strconv.FormatInt(customerID, 10)}}
	raw, err := c.do(ctx, http.MethodGet, "/api/customers", q, nil)
	if err != nil {
		return "", errors.Wrap(err, "get customer")
	}

	var records []customerRecord
	if err := decodeItems(raw, &records); err != nil {
		return "", errors.Wrap(err, "decode customers")
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].Name, nil
}
