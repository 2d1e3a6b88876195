package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nurdspace/nurdbar/internal/api"
	"github.com/nurdspace/nurdbar/internal/auth"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operator HTTP API",
		Long: `Run the operator HTTP API. A missing database is created first,
together with an admin operator whose password is printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				rootOpts.Config.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides NURDBAR_HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	log := opts.Logger
	cfg := opts.Config

	if _, err := os.Stat(cfg.DB.Path); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(ctx, opts, defaultAdmin)
		if err != nil {
			return err
		}
		database.Close()
		printInitResult(cmd.OutOrStdout(), cfg.DB.Path, defaultAdmin, password)
	}

	reg, m := newMetrics()

	database, l, err := opts.openLedger(ctx, m)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info(log.WithField(ctx, "path", cfg.DB.Path), "database ready")

	if n, err := store.PurgeExpiredTokens(ctx, database); err != nil {
		return err
	} else if n > 0 {
		log.Info(log.WithField(ctx, "purged", n), "dropped expired token revocations")
	}

	secret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	handler := api.NewRouter(api.Deps{
		DB:            database,
		Ledger:        l,
		Signer:        auth.NewSigner(secret, cfg.Auth.TokenExpiry),
		Logger:        log,
		Metrics:       m,
		Gatherer:      reg,
		DefaultAmount: cfg.Bar.DefaultAmount,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(log.WithField(ctx, "addr", cfg.HTTP.Addr), "server started")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", err)
		return err
	}

	log.Info(ctx, "server stopped, closing database")
	return nil
}

// newMetrics returns a registry with the runtime collectors and the bar
// metrics registered on it.
func newMetrics() (*prometheus.Registry, *metrics.Bar) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.New(reg)
}

// serveMetrics exposes reg on addr until the returned stop function is
// called.
func serveMetrics(ctx context.Context, log *logger.Logger, addr string, reg prometheus.Gatherer) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", err)
		}
	}()
	log.Info(log.WithField(ctx, "addr", ln.Addr().String()), "metrics server started")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
