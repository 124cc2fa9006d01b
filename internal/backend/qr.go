package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// QRImageURL asks the payment provider gateway for a VietQR image URL keyed
// by order id. The provider has answered with a couple of field names over
// time, so the lookup is tolerant.
func (c *Client) QRImageURL(ctx context.Context, orderID int64) (string, error) {
	q := url.Values{"orderId": {strconv.FormatInt(orderID, 10)}}
	raw, err := c.do(ctx, http.MethodGet, "/api/sepay/vietqr", q, nil)
	if err != nil {
		return "", errors.Wrap(err, "fetch qr url")
	}

	var qrURL string
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "qrUrl", "url", "imageUrl":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			if qrURL == "" {
				qrURL = s
			}
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", errors.Wrap(err, "parse qr response")
	}

	if qrURL == "" {
		return "", errors.New("qr response carries no image url")
	}
	return qrURL, nil
}
