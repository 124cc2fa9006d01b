// Package printing turns finalized orders into receipt print jobs and
// hands them to the configured transport.
package printing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/receipt"
	"github.com/vietshop/posterm/internal/session"
	"github.com/vietshop/posterm/pkg/printer"
)

// NameResolver looks up a display name for a customer id.
type NameResolver interface {
	CustomerName(ctx context.Context, customerID int64) (string, error)
}

// Dispatcher assembles receipt jobs and prints them. A preview transport
// receives the HTML rendition; physical transports receive ESC/POS text.
type Dispatcher struct {
	formatter *receipt.Formatter
	printer   printer.Printer
	sess      *session.Session
	names     NameResolver
	width     int
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher over the given transport. names may be
// nil, in which case receipts carry no customer line.
func NewDispatcher(p printer.Printer, sess *session.Session, names NameResolver, width int) *Dispatcher {
	return &Dispatcher{
		formatter: receipt.NewFormatter(width),
		printer:   p,
		sess:      sess,
		names:     names,
		width:     width,
		now:       time.Now,
	}
}

// Preview returns the preview buffer when that is the active transport.
func (d *Dispatcher) Preview() (*printer.Preview, bool) {
	p, ok := d.printer.(*printer.Preview)
	return p, ok
}

// PrintReceipt renders and delivers the receipt for a finalized order.
// Customer name lookup is best-effort; the receipt prints without it.
func (d *Dispatcher) PrintReceipt(ctx context.Context, o *order.Order, received, change decimal.Decimal) error {
	job := receipt.Job{
		Order:     o,
		Received:  received,
		Change:    change,
		PrintedAt: d.now(),
	}
	if shop, ok := d.sess.ShopInfo(); ok {
		job.Shop = shop
	}
	if prof, ok := d.sess.Profile(); ok {
		job.Cashier = prof.Name
	}
	if d.names != nil && o.CustomerID != nil {
		name, err := d.names.CustomerName(ctx, *o.CustomerID)
		if err != nil {
			zctx.From(ctx).Debug("customer name lookup failed",
				zap.Int64("customer_id", *o.CustomerID), zap.Error(err))
		} else {
			job.CustomerName = name
		}
	}

	if _, ok := d.Preview(); ok {
		html, err := d.formatter.HTML(job)
		if err != nil {
			return err
		}
		return d.printer.Print(ctx, html)
	}

	doc := printer.NewDocument(d.width).
		Text(string(d.formatter.Text(job))).
		Cut()
	if err := d.printer.Print(ctx, doc.Bytes()); err != nil {
		return errors.Wrap(err, "deliver receipt")
	}
	return nil
}
