package backend

import (
	"strconv"

	"github.com/go-faster/jx"
)

// extractOrderID recovers the order id from a create-order response.
//
// This is a compatibility shim: the backend has answered with several shapes
// over time, and deployments in the field still do. Candidates are collected
// in one streaming pass and resolved in fixed precedence:
//
//	orderId > id > data.orderId > data.id > items[0].orderId
//
// Ids may arrive as JSON numbers or numeric strings. A malformed body yields
// (0, false) rather than an error; the caller maps that to ErrNoOrderID.
func extractOrderID(raw []byte) (int64, bool) {
	var c idCandidates

	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "orderId":
			return captureID(d, &c.orderID)
		case "id":
			return captureID(d, &c.id)
		case "data":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "orderId":
					return captureID(d, &c.dataOrderID)
				case "id":
					return captureID(d, &c.dataID)
				default:
					return d.Skip()
				}
			})
		case "items":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			first := true
			return d.Arr(func(d *jx.Decoder) error {
				if !first || d.Next() != jx.Object {
					return d.Skip()
				}
				first = false
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key == "orderId" {
						return captureID(d, &c.itemOrderID)
					}
					return d.Skip()
				})
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return 0, false
	}

	return c.resolve()
}

type idCandidates struct {
	orderID     *int64
	id          *int64
	dataOrderID *int64
	dataID      *int64
	itemOrderID *int64
}

func (c idCandidates) resolve() (int64, bool) {
	for _, p := range []*int64{c.orderID, c.id, c.dataOrderID, c.dataID, c.itemOrderID} {
		if p != nil && *p > 0 {
			return *p, true
		}
	}
	return 0, false
}

// captureID reads a number or numeric string into dst; anything else is
// skipped without failing the pass.
func captureID(d *jx.Decoder, dst **int64) error {
	switch d.Next() {
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return err
		}
		*dst = &n
		return nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			*dst = &n
		}
		return nil
	default:
		return d.Skip()
	}
}
