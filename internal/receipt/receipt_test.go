package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/session"
)

func TestFormatVND(t *testing.T) {
	tests := []struct {
		give decimal.Decimal
		want string
	}{
		{decimal.Zero, "0đ"},
		{decimal.NewFromInt(500), "500đ"},
		{decimal.NewFromInt(25000), "25.000đ"},
		{decimal.NewFromInt(1500000), "1.500.000đ"},
		{decimal.NewFromFloat(9999.6), "10.000đ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatVND(tt.give), tt.give.String())
	}
}

func testJob() Job {
	return Job{
		Shop: session.ShopInfo{
			Name:    "Tạp hóa Minh Anh",
			Address: "12 Lý Thường Kiệt",
			Phone:   "0901234567",
			Wifi:    "minhanh2026",
		},
		Order: &order.Order{
			ID:     42,
			Status: order.StatusPaid,
			Details: []order.Detail{
				{ProductID: 7, ProductName: "Cà phê sữa", Quantity: 2, UnitPrice: decimal.NewFromInt(25000)},
				{ProductID: 9, Quantity: 1, UnitPrice: decimal.NewFromInt(100000)},
			},
			Discount: decimal.NewFromInt(15000),
		},
		Cashier:      "Lan",
		CustomerName: "Nguyễn Văn A",
		Received:     decimal.NewFromInt(200000),
		Change:       decimal.NewFromInt(65000),
		PrintedAt:    time.Date(2026, 2, 17, 9, 30, 0, 0, time.Local),
	}
}

func TestTextReceipt(t *testing.T) {
	text := string(NewFormatter(0).Text(testJob()))

	assert.Contains(t, text, "TẠP HÓA MINH ANH")
	assert.Contains(t, text, "HĐ: 42")
	assert.Contains(t, text, "17/02/2026 09:30")
	assert.Contains(t, text, "Thu ngân: Lan")
	assert.Contains(t, text, "Khách: Nguyễn Văn A")
	assert.Contains(t, text, "Cà phê sữa")
	assert.Contains(t, text, "2 x 25.000đ")
	// Unnamed lines fall back to the product id.
	assert.Contains(t, text, "Sản phẩm #9")
	assert.Contains(t, text, "150.000đ")  // subtotal
	assert.Contains(t, text, "-15.000đ")  // discount
	assert.Contains(t, text, "135.000đ")  // total
	assert.Contains(t, text, "200.000đ")  // received
	assert.Contains(t, text, "65.000đ")   // change
	assert.Contains(t, text, "Wifi: minhanh2026")
	assert.Contains(t, text, "Cảm ơn quý khách!")
}

func TestTextReceiptRowsFitWidth(t *testing.T) {
	text := NewFormatter(32).Text(testJob())

	for _, line := range strings.Split(strings.TrimRight(string(text), "\n"), "\n") {
		runes := len([]rune(line))
		assert.LessOrEqual(t, runes, 32, "line %q", line)
	}
}

func TestTextReceiptOmitsCashSectionForQR(t *testing.T) {
	j := testJob()
	j.Received = decimal.Zero
	j.Change = decimal.Zero

	text := string(NewFormatter(0).Text(j))
	assert.NotContains(t, text, "Tiền khách đưa")
	assert.NotContains(t, text, "Tiền thối")
}

func TestHTMLReceipt(t *testing.T) {
	html, err := NewFormatter(0).HTML(testJob())
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "Tạp hóa Minh Anh")
	assert.Contains(t, s, "HĐ: 42")
	assert.Contains(t, s, "Cà phê sữa")
	assert.Contains(t, s, "135.000đ")
	assert.Contains(t, s, `lang="vi"`)
}

func TestHTMLReceiptEscapesContent(t *testing.T) {
	j := testJob()
	j.Order.Details[0].ProductName = `<script>alert("x")</script>`

	html, err := NewFormatter(0).HTML(j)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
}
