package backend

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrNoOrderID is returned when an order-creating call succeeds at the HTTP
// level but no order id can be recovered from the response.
var ErrNoOrderID = errors.New("backend response carries no order id")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// messageFromBody pulls a human-readable message out of an error response.
// Bodies that are not valid JSON are tolerated: the raw text is used as-is,
// truncated to keep logs sane.
func messageFromBody(raw []byte) string {
	var msg string
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message", "error", "title":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			if msg == "" {
				msg = s
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err == nil && msg != "" {
		return msg
	}

	text := string(raw)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
