// Package app wires the terminal daemon together: session store, backend
// client, discount engine, printer transport, websocket hub, and the
// loopback HTTP API, with graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/vietshop/posterm/internal/api"
	"github.com/vietshop/posterm/internal/backend"
	"github.com/vietshop/posterm/internal/discount"
	"github.com/vietshop/posterm/internal/domain/voucher"
	"github.com/vietshop/posterm/internal/printing"
	"github.com/vietshop/posterm/internal/session"
	"github.com/vietshop/posterm/internal/ws"
	"github.com/vietshop/posterm/pkg/health"
	"github.com/vietshop/posterm/pkg/httpmiddleware"
	"github.com/vietshop/posterm/pkg/printer"
)

const healthCheckInterval = 10 * time.Second

// Run starts the daemon and blocks until ctx is cancelled and shutdown
// completes.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	store, err := session.OpenFileStore(cfg.Session.Path)
	if err != nil {
		return errors.Wrap(err, "open session store")
	}
	sess := session.New(store)

	client := backend.New(cfg.Backend, sess)

	prefilter := loadPrefilter(lg, cfg.Voucher.SnapshotPath)
	engine := discount.NewEngine(client, prefilter)

	transport, err := printer.Open(printer.Mode(cfg.Printer.Mode), cfg.Printer.Address, cfg.Printer.Device)
	if err != nil {
		return errors.Wrap(err, "open printer")
	}
	defer func() {
		_ = transport.Close()
	}()
	lg.Info("Printer transport ready",
		zap.String("mode", cfg.Printer.Mode),
		zap.Bool("connected", transport.IsConnected()),
	)
	dispatcher := printing.NewDispatcher(transport, sess, client, cfg.Printer.Width)

	hub := ws.NewHub()
	go hub.Run(ctx)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(1000))
	healthSvc.AddReadinessCheck("backend", 5*time.Second, health.HTTPReachableCheck(nil, cfg.Backend.BaseURL))
	healthSvc.Start(ctx, healthCheckInterval)
	defer healthSvc.Stop()

	srv := api.NewServer(sess, client, engine, dispatcher, hub, healthSvc)

	handler := httpmiddleware.Wrap(srv.Routes(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins: cfg.CORS.Origins,
		}),
		httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.LogRequests(),
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	healthSvc.SetReady(true)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		healthSvc.SetReady(false)
		lg.Info("Shutting down", zap.Duration("drain", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown", zap.Error(err))
		}
	}()

	lg.Info("Listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen and serve")
	}

	<-shutdownDone
	return nil
}

// loadPrefilter loads the voucher code snapshot when configured. A missing
// or unreadable snapshot degrades to no prefiltering rather than failing
// startup.
func loadPrefilter(lg *zap.Logger, path string) *voucher.Prefilter {
	if path == "" {
		return nil
	}
	p, err := voucher.LoadPrefilter(path)
	if err != nil {
		lg.Warn("Voucher snapshot unavailable, prefilter disabled",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	return p
}
