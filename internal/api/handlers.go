package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/session"
)

type openSessionRequest struct {
	AccessToken string            `json:"accessToken"`
	Profile     session.Profile   `json:"profile"`
	Shift       session.Shift     `json:"shift"`
	ShopInfo    *session.ShopInfo `json:"shopInfo,omitempty"`
}

// handleOpenSession seeds the terminal session after the cashier logs in
// and opens a shift on the backend.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AccessToken == "" || req.Profile.ShopID <= 0 || req.Shift.ID <= 0 {
		badRequest(w, "accessToken, profile.shopId and shift.id are required")
		return
	}

	if err := s.sess.SetAccessToken(req.AccessToken); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sess.SetProfile(req.Profile); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sess.SetShift(req.Shift); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ShopInfo != nil {
		if err := s.sess.SetShopInfo(*req.ShopInfo); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCloseSession tears down the active checkout and wipes the session.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if prev := s.swapController(nil); prev != nil {
		prev.Close(r.Context())
	}
	if err := s.sess.Reset(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startCheckoutRequest struct {
	OrderDetails []order.Detail `json:"orderDetails"`
	CustomerID   *int64         `json:"customerId,omitempty"`
	Note         string         `json:"note,omitempty"`
}

type startCheckoutResponse struct {
	State    any       `json:"state"`
	SavedTab order.Tab `json:"savedTab,omitempty"`
}

// handleStartCheckout opens a checkout over the cart's line items. An
// existing checkout is torn down first, demoting its order unless paid. The
// previously persisted tab is returned so the UI can restore it.
func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.OrderDetails) == 0 {
		badRequest(w, "orderDetails must not be empty")
		return
	}

	ctrl, err := s.newController(req.OrderDetails, req.CustomerID, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if prev := s.swapController(ctrl); prev != nil {
		prev.Close(r.Context())
	}

	resp := startCheckoutResponse{State: ctrl.State()}
	if tab, ok := s.sess.ActiveTab(); ok {
		resp.SavedTab = tab
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleState returns the live checkout snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

type selectTabRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}

	var req selectTabRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tab, ok := order.ParseTab(req.Tab)
	if !ok {
		badRequest(w, "unknown payment tab")
		return
	}

	if err := ctrl.SelectTab(r.Context(), tab); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

type voucherRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleApplyVoucher(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}

	var req voucherRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		badRequest(w, "voucher code is required")
		return
	}

	if err := ctrl.ApplyVoucher(r.Context(), req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

func (s *Server) handleRemoveVoucher(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}
	ctrl.RemoveVoucher()
	writeJSON(w, http.StatusOK, ctrl.State())
}

type manualDiscountRequest struct {
	Percent decimal.Decimal `json:"percent"`
}

func (s *Server) handleManualDiscount(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}

	var req manualDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctrl.SetManualPercent(req.Percent)
	writeJSON(w, http.StatusOK, ctrl.State())
}

type cashCheckoutRequest struct {
	Received decimal.Decimal `json:"received"`
}

func (s *Server) handleCashCheckout(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}

	var req cashCheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Received.IsPositive() {
		badRequest(w, "received must be positive")
		return
	}

	res, err := ctrl.CheckoutCash(r.Context(), req.Received)
	if err != nil {
		// Shortage responses still carry the numbers the UI shows.
		if res != nil && res.Shortage.IsPositive() {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}
	ctrl.Abandon(r.Context())
	writeJSON(w, http.StatusOK, ctrl.State())
}

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}
	ctrl.Hide()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller()
	if ctrl == nil {
		writeError(w, r, errNoActiveCheckout)
		return
	}
	if err := ctrl.Show(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

// handleLastReceipt serves the HTML of the most recent preview receipt,
// replacing the print pop-up window of the old UI.
func (s *Server) handleLastReceipt(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		http.NotFound(w, r)
		return
	}
	preview, ok := s.dispatcher.Preview()
	if !ok {
		http.NotFound(w, r)
		return
	}
	last := preview.Last()
	if last == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(last)
}
