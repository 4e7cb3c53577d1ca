package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/presentation/tui"
	httpadapter "github.com/aretw0/cadence/pkg/adapters/http"
)

// RunSession drives the station until interrupted or halted.
func RunSession(opts RunOptions) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := createLogger(cfg, opts.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	if !opts.Headless {
		tui.PrintBanner(os.Stdout, cadence.Version)
	}

	s, err := createEngine(cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer s.Close()

	// Setup signal handling
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if cfg.HTTP.Addr != "" {
		stop := serveHTTP(sigCtx, cfg.HTTP.Addr, s, logger)
		defer stop()
	}

	w := s.engine.World()
	if !opts.Headless {
		updates, unsubscribe := w.Subscribe(64)
		defer unsubscribe()
		view := tui.NewProgressView(os.Stdout)
		go func() {
			for p := range updates {
				view.Show(p)
			}
		}()
		go readCommands(NewInterruptibleReader(os.Stdin, sigCtx.Done()), w, s.engine.Registry(), os.Stdout)
	}

	logger.Info("Station Started", "procedure", cfg.InitialProcedure, "simulate", cfg.Station.Simulate, "test_mode", cfg.TestMode)
	runErr := s.engine.Run(sigCtx, cfg.InitialProcedure)

	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}
	logCompletion(os.Stdout, w.CurrentProgress().Procedure, runErr, opts.Headless, sigCtx.Signal())

	return handleExecutionError(runErr)
}

// serveHTTP starts the operator API on addr. The returned function shuts it down.
func serveHTTP(ctx context.Context, addr string, s *stack, logger *slog.Logger) func() {
	handler := httpadapter.NewHandler(s.engine.World(), s.engine.Registry(),
		httpadapter.WithTelemetry(s.operatorTelemetry()),
		httpadapter.WithMetrics(s.metrics.Handler()),
		httpadapter.WithVersion(cadence.Version),
		httpadapter.WithLogger(logger),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP API failed", "err", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP API shutdown", "err", err)
		}
	}
}
