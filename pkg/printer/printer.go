// Package printer delivers raw byte streams to receipt printers over the
// transports a counter terminal actually has: a LAN thermal printer on
// port 9100, a USB device file, or an in-memory preview for browser display.
package printer

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/go-faster/errors"
)

// Mode selects the delivery transport.
type Mode string

const (
	// ModeAuto probes for a usable transport at open time.
	ModeAuto Mode = "auto"
	// ModeNetwork dials a raw TCP printer, e.g. "192.168.1.50:9100".
	ModeNetwork Mode = "network"
	// ModeUSB writes to a device file, e.g. "/dev/usb/lp0".
	ModeUSB Mode = "usb"
	// ModePreview keeps the rendered receipt in memory for the UI to show.
	ModePreview Mode = "preview"
)

// ErrUnavailable reports that no transport could deliver the job.
var ErrUnavailable = errors.New("printer unavailable")

// Printer sends one raw job to a receipt printer. Implementations connect
// per job; a flaky printer must not hold the checkout flow hostage between
// receipts.
type Printer interface {
	Print(ctx context.Context, data []byte) error
	IsConnected() bool
	Close() error
}

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

type networkPrinter struct {
	address string
	dialer  net.Dialer
}

// NewNetwork creates a Printer that dials address per job over TCP.
func NewNetwork(address string) Printer {
	return &networkPrinter{
		address: address,
		dialer:  net.Dialer{Timeout: dialTimeout},
	}
}

func (p *networkPrinter) Print(ctx context.Context, data []byte) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return errors.Wrapf(err, "dial printer %s", p.address)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return errors.Wrapf(err, "write to printer %s", p.address)
	}
	return nil
}

func (p *networkPrinter) IsConnected() bool {
	conn, err := net.DialTimeout("tcp", p.address, dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (p *networkPrinter) Close() error { return nil }

type usbPrinter struct {
	device string
}

// NewUSB creates a Printer that writes to a USB printer device file. The
// file is opened per job.
func NewUSB(device string) Printer {
	return &usbPrinter{device: device}
}

func (p *usbPrinter) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.device, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "open printer device %s", p.device)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "write to printer device %s", p.device)
	}
	return nil
}

func (p *usbPrinter) IsConnected() bool {
	_, err := os.Stat(p.device)
	return err == nil
}

func (p *usbPrinter) Close() error { return nil }

// Open builds the Printer for the configured mode. ModeAuto probes in
// order: USB device file, network address, preview.
func Open(mode Mode, address, device string) (Printer, error) {
	switch mode {
	case ModeNetwork:
		if address == "" {
			return nil, errors.New("network printer requires an address")
		}
		return NewNetwork(address), nil
	case ModeUSB:
		if device == "" {
			return nil, errors.New("usb printer requires a device path")
		}
		return NewUSB(device), nil
	case ModePreview:
		return NewPreview(0), nil
	case ModeAuto, "":
		if device != "" {
			if p := NewUSB(device); p.IsConnected() {
				return p, nil
			}
		}
		if address != "" {
			if p := NewNetwork(address); p.IsConnected() {
				return p, nil
			}
		}
		return NewPreview(0), nil
	default:
		return nil, errors.Errorf("unknown printer mode %q", mode)
	}
}
