package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vietshop/posterm/internal/backend"
	"github.com/vietshop/posterm/internal/domain/voucher"
	"github.com/vietshop/posterm/internal/payment"
)

// errNoActiveCheckout means a checkout endpoint was hit before POST
// /api/checkout opened a session.
var errNoActiveCheckout = errors.New("no active checkout session")

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest reports a malformed or incomplete request body.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

// writeError maps workflow errors onto the HTTP surface. Backend failures
// come out as 502 so the UI can distinguish "backend is down" from "you
// sent something invalid".
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError

	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, errNoActiveCheckout):
		code = http.StatusNotFound
	case errors.Is(err, voucher.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, voucher.ErrExpired):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrInsufficientTender):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrAlreadyFinalized):
		code = http.StatusConflict
	case errors.Is(err, payment.ErrNoShiftContext):
		code = http.StatusConflict
	case errors.As(err, &statusErr), errors.Is(err, backend.ErrNoOrderID):
		code = http.StatusBadGateway
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			code = http.StatusBadGateway
		}
	}

	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Code: code, Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}
