package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietshop/posterm/internal/backend"
	"github.com/vietshop/posterm/internal/discount"
	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/domain/voucher"
	"github.com/vietshop/posterm/internal/payment"
	"github.com/vietshop/posterm/internal/printing"
	"github.com/vietshop/posterm/internal/session"
	"github.com/vietshop/posterm/pkg/printer"
)

// fakeShop emulates the remote shop backend.
type fakeShop struct {
	mu         sync.Mutex
	nextID     int64
	lastPut    *order.Order
	putCount   int
	headStatus order.Status
}

func (f *fakeShop) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.nextID = 42
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"orderId": 42})
	})
	mux.HandleFunc("PUT /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var o order.Order
		_ = json.NewDecoder(r.Body).Decode(&o)
		f.mu.Lock()
		f.lastPut = &o
		f.putCount++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})
	mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status := f.headStatus
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"orderId": 42, "status": int(status), "shopId": 3, "shiftId": 11},
		})
	})
	mux.HandleFunc("GET /api/order-details", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("GET /api/vouchers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Code") != "TET2026" {
			_ = json.NewEncoder(w).Encode([]any{})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"voucherId":     5,
			"code":          "TET2026",
			"discountType":  "percent",
			"discountValue": 10,
			"expired":       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		}})
	})
	mux.HandleFunc("GET /api/sepay/vietqr", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"qrUrl": "https://img.vietqr.io/image/42.png"})
	})
	mux.HandleFunc("GET /api/customers", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"customerId": 9, "customerName": "Nguyễn Văn A"},
		})
	})

	return mux
}

func (f *fakeShop) lastStatus() (order.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPut == nil {
		return 0, false
	}
	return f.lastPut.Status, true
}

type apiHarness struct {
	srv    *Server
	api    *httptest.Server
	shop   *fakeShop
	sess   *session.Session
	client *http.Client
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	shop := &fakeShop{}
	shopSrv := httptest.NewServer(shop.handler())
	t.Cleanup(shopSrv.Close)

	sess := session.New(session.NewMemStore())
	client := backend.New(backend.Config{BaseURL: shopSrv.URL, Timeout: 5 * time.Second}, sess)
	engine := discount.NewEngine(client, voucher.NewPrefilter([]string{"TET2026"}))
	dispatcher := printing.NewDispatcher(printer.NewPreview(0), sess, client, 32)

	srv := NewServer(sess, client, engine, dispatcher, nil, nil)
	apiSrv := httptest.NewServer(srv.Routes())
	t.Cleanup(apiSrv.Close)

	return &apiHarness{srv: srv, api: apiSrv, shop: shop, sess: sess, client: apiSrv.Client()}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.api.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (h *apiHarness) openSession(t *testing.T) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/session/open", map[string]any{
		"accessToken": "tok-1",
		"profile":     map[string]any{"userId": 1, "shopId": 3, "name": "Lan"},
		"shift":       map[string]any{"shiftId": 11},
		"shopInfo":    map[string]any{"name": "Tạp hóa Minh Anh"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func (h *apiHarness) startCheckout(t *testing.T) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/checkout/", map[string]any{
		"orderDetails": []map[string]any{
			{"productId": 7, "productName": "Cà phê sữa", "quantity": 2, "unitPrice": "50000"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestOpenSessionValidation(t *testing.T) {
	h := newAPIHarness(t)

	resp := h.do(t, http.MethodPost, "/api/session/open", map[string]any{"accessToken": "tok"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The shift id travels under the backend's key name.
	resp = h.do(t, http.MethodPost, "/api/session/open", map[string]any{
		"accessToken": "tok",
		"profile":     map[string]any{"userId": 1, "shopId": 3},
		"shift":       map[string]any{"id": 11},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/session/open", map[string]any{
		"accessToken": "tok",
		"profile":     map[string]any{"userId": 1, "shopId": 3},
		"shift":       map[string]any{"shiftId": 11},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStartCheckoutRequiresSession(t *testing.T) {
	h := newAPIHarness(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/", map[string]any{
		"orderDetails": []map[string]any{{"productId": 7, "quantity": 1, "unitPrice": "1000"}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartCheckoutRejectsEmptyCart(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/", map[string]any{"orderDetails": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutEndpointsRequireActiveCheckout(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/checkout/state"},
		{http.MethodPost, "/api/checkout/tab"},
		{http.MethodPost, "/api/checkout/cash"},
		{http.MethodPost, "/api/checkout/abandon"},
	} {
		resp := h.do(t, tc.method, tc.path, map[string]any{})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestCashCheckoutFlow(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	// Selecting a tab creates the order and registers the method.
	resp := h.do(t, http.MethodPost, "/api/checkout/tab", map[string]any{"tab": "cash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[payment.State](t, resp)
	assert.Equal(t, int64(42), st.OrderID)

	// 10% voucher against the 100.000 subtotal.
	resp = h.do(t, http.MethodPost, "/api/checkout/voucher", map[string]any{"code": "TET2026"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = decode[payment.State](t, resp)
	assert.True(t, st.VoucherAmount.Equal(decimal.NewFromInt(10000)), st.VoucherAmount.String())

	resp = h.do(t, http.MethodPost, "/api/checkout/cash", map[string]any{"received": "200000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[payment.CashResult](t, resp)
	assert.True(t, res.Change.Equal(decimal.NewFromInt(110000)), res.Change.String())

	status, ok := h.shop.lastStatus()
	require.True(t, ok)
	assert.Equal(t, order.StatusPaid, status)

	// Receipt preview is available after checkout.
	resp = h.do(t, http.MethodGet, "/receipts/last", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "Cà phê sữa")

	// Finalizing twice conflicts.
	resp = h.do(t, http.MethodPost, "/api/checkout/cash", map[string]any{"received": "200000"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCashCheckoutShortage(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/cash", map[string]any{"received": "60000"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	res := decode[payment.CashResult](t, resp)
	assert.True(t, res.Shortage.Equal(decimal.NewFromInt(40000)), res.Shortage.String())
}

func TestVoucherNotFound(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/voucher", map[string]any{"code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectTabRejectsUnknownTab(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/tab", map[string]any{"tab": "paypal"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAbandonDemotesOrder(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/tab", map[string]any{"tab": "cash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/checkout/abandon", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[payment.State](t, resp)
	assert.True(t, st.Abandoned)

	status, ok := h.shop.lastStatus()
	require.True(t, ok)
	assert.Equal(t, order.StatusAbandoned, status)
}

func TestSavedTabReturnedOnRestart(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodPost, "/api/checkout/tab", map[string]any{"tab": "atm"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Restarting the checkout reports the persisted tab for the UI to
	// restore.
	resp = h.do(t, http.MethodPost, "/api/checkout/", map[string]any{
		"orderDetails": []map[string]any{
			{"productId": 8, "quantity": 1, "unitPrice": "20000"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "atm", body["savedTab"])
}

func TestCloseSessionWipesState(t *testing.T) {
	h := newAPIHarness(t)
	h.openSession(t)
	h.startCheckout(t)

	resp := h.do(t, http.MethodDelete, "/api/session/", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Empty(t, h.sess.AccessToken())
	resp = h.do(t, http.MethodGet, "/api/checkout/state", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProbesAbsentWithoutHealth(t *testing.T) {
	h := newAPIHarness(t)

	resp := h.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
