package printer

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Align is the ESC/POS text alignment.
type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Size is the ESC/POS character magnification.
type Size byte

const (
	SizeNormal Size = 0x00
	SizeTall   Size = 0x01
	SizeWide   Size = 0x10
	SizeDouble Size = 0x11
)

// Document accumulates an ESC/POS byte stream for a thermal printer. The
// zero width means 32 columns (58mm paper); 80mm rolls use 48.
type Document struct {
	buf   bytes.Buffer
	width int
}

// NewDocument starts a document, emitting the printer initialize sequence.
func NewDocument(width int) *Document {
	if width <= 0 {
		width = 32
	}
	d := &Document{width: width}
	d.buf.Write([]byte{esc, '@'})
	return d
}

// Align sets the alignment for subsequent lines.
func (d *Document) Align(a Align) *Document {
	d.buf.Write([]byte{esc, 'a', byte(a)})
	return d
}

// Bold toggles emphasized printing.
func (d *Document) Bold(on bool) *Document {
	var b byte
	if on {
		b = 1
	}
	d.buf.Write([]byte{esc, 'E', b})
	return d
}

// Size sets the character magnification.
func (d *Document) Size(s Size) *Document {
	d.buf.Write([]byte{gs, '!', byte(s)})
	return d
}

// Line writes one line of text.
func (d *Document) Line(s string) *Document {
	d.buf.WriteString(s)
	d.buf.WriteByte(lf)
	return d
}

// Row writes left and right justified to the opposite edges of the paper.
// Widths are counted in runes, not bytes; Vietnamese text is multi-byte.
func (d *Document) Row(left, right string) *Document {
	gap := d.width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	d.buf.WriteString(left)
	d.buf.WriteString(strings.Repeat(" ", gap))
	d.buf.WriteString(right)
	d.buf.WriteByte(lf)
	return d
}

// Divider writes a full-width rule of the given character.
func (d *Document) Divider(c rune) *Document {
	d.buf.WriteString(strings.Repeat(string(c), d.width))
	d.buf.WriteByte(lf)
	return d
}

// Text writes pre-rendered multi-line text as-is.
func (d *Document) Text(s string) *Document {
	d.buf.WriteString(s)
	return d
}

// Feed advances the paper n lines.
func (d *Document) Feed(n int) *Document {
	for range n {
		d.buf.WriteByte(lf)
	}
	return d
}

// Cut feeds past the cutter and performs a partial cut, the safe default
// for receipt rolls.
func (d *Document) Cut() *Document {
	d.Feed(3)
	d.buf.Write([]byte{gs, 'V', 0x01})
	return d
}

// Bytes returns the accumulated stream.
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}
