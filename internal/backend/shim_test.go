package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int64
		wantOK bool
	}{
		{name: "top-level orderId", raw: `{"orderId": 42}`, want: 42, wantOK: true},
		{name: "top-level id", raw: `{"id": 7}`, want: 7, wantOK: true},
		{name: "nested data.orderId", raw: `{"data": {"orderId": 11}}`, want: 11, wantOK: true},
		{name: "nested data.id", raw: `{"data": {"id": 12}}`, want: 12, wantOK: true},
		{name: "items[0].orderId", raw: `{"items": [{"orderId": 99}, {"orderId": 100}]}`, want: 99, wantOK: true},
		{name: "numeric string id", raw: `{"orderId": "42"}`, want: 42, wantOK: true},
		{name: "orderId wins over id", raw: `{"id": 1, "orderId": 2}`, want: 2, wantOK: true},
		{name: "id wins over data", raw: `{"data": {"orderId": 3}, "id": 1}`, want: 1, wantOK: true},
		{name: "zero id is not an id", raw: `{"orderId": 0, "data": {"id": 5}}`, want: 5, wantOK: true},
		{name: "no candidates", raw: `{"status": "ok"}`, wantOK: false},
		{name: "non-numeric string", raw: `{"orderId": "abc"}`, wantOK: false},
		{name: "not an object", raw: `[1,2,3]`, wantOK: false},
		{name: "malformed json", raw: `{"orderId": `, wantOK: false},
		{name: "empty body", raw: ``, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractOrderID([]byte(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMessageFromBody(t *testing.T) {
	assert.Equal(t, "shift is closed", messageFromBody([]byte(`{"message": "shift is closed"}`)))
	assert.Equal(t, "bad code", messageFromBody([]byte(`{"error": "bad code"}`)))
	// Invalid JSON falls back to raw text.
	assert.Equal(t, "Bad Gateway", messageFromBody([]byte("Bad Gateway")))
}
