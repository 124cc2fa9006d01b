// Package api exposes the terminal's loopback HTTP surface: session
// bootstrap, the payment checkout workflow, receipt preview, workflow
// events over WebSocket, and health probes.
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/vietshop/posterm/internal/backend"
	"github.com/vietshop/posterm/internal/discount"
	"github.com/vietshop/posterm/internal/domain/order"
	"github.com/vietshop/posterm/internal/payload"
	"github.com/vietshop/posterm/internal/payment"
	"github.com/vietshop/posterm/internal/printing"
	"github.com/vietshop/posterm/internal/session"
	"github.com/vietshop/posterm/internal/ws"
	"github.com/vietshop/posterm/pkg/health"
)

// Server wires the workflow components behind the HTTP API. One checkout
// session is active at a time, mirroring a single cashier screen.
type Server struct {
	sess       *session.Session
	client     *backend.Client
	engine     *discount.Engine
	dispatcher *printing.Dispatcher
	hub        *ws.Hub
	health     *health.Health

	mu     sync.Mutex
	active *payment.Controller
}

// NewServer assembles the API server. health may be nil when probes are
// served elsewhere.
func NewServer(
	sess *session.Session,
	client *backend.Client,
	engine *discount.Engine,
	dispatcher *printing.Dispatcher,
	hub *ws.Hub,
	h *health.Health,
) *Server {
	return &Server{
		sess:       sess,
		client:     client,
		engine:     engine,
		dispatcher: dispatcher,
		hub:        hub,
		health:     h,
	}
}

// Routes builds the router. Middleware is applied by the caller so tests
// can exercise handlers bare.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/open", s.handleOpenSession)
			r.Delete("/", s.handleCloseSession)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", s.handleStartCheckout)
			r.Get("/state", s.handleState)
			r.Post("/tab", s.handleSelectTab)
			r.Post("/voucher", s.handleApplyVoucher)
			r.Delete("/voucher", s.handleRemoveVoucher)
			r.Post("/discount", s.handleManualDiscount)
			r.Post("/cash", s.handleCashCheckout)
			r.Post("/abandon", s.handleAbandon)
			r.Post("/hide", s.handleHide)
			r.Post("/show", s.handleShow)
		})
	})

	r.Get("/receipts/last", s.handleLastReceipt)

	if s.hub != nil {
		r.Get("/ws", s.hub.Serve)
	}
	if s.health != nil {
		r.Get("/livez", s.health.LiveEndpoint)
		r.Get("/readyz", s.health.ReadyEndpoint)
	}

	return r
}

// controller returns the active checkout controller, or nil.
func (s *Server) controller() *payment.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// swapController installs next as the active controller and returns the
// previous one for teardown.
func (s *Server) swapController(next *payment.Controller) *payment.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.active = next
	return prev
}

func (s *Server) newController(details []order.Detail, customerID *int64, note string) (*payment.Controller, error) {
	deps := payment.Deps{
		Backend: s.client,
		Builder: payload.NewBuilder(s.client, s.sess),
		Session: s.sess,
		Engine:  s.engine,
	}
	if s.dispatcher != nil {
		deps.Printer = s.dispatcher
	}
	if s.hub != nil {
		deps.Events = s.hub
	}
	return payment.NewController(deps, details, customerID, note)
}
