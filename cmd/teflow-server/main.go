// teflow-server serves the analysis service over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/config"
	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/policy"
	"github.com/teflow/teflow/internal/policy/cache"
	"github.com/teflow/teflow/internal/transport/httptransport"
)

func main() {
	cfg := config.Load()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	svc := app.NewService(
		policy.NewCompiler(),
		cache.NewInMemory[*policy.Policy](cfg.PolicyCacheMaxItems),
		cache.NewInMemory[*infoflow.FlowGraph](cfg.GraphCacheMaxItems),
	)
	h := httptransport.NewHandler(svc, logger, cfg.MaxFlows)

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", h.Analyze)
	mux.HandleFunc("/stats", h.Stats)
	mux.HandleFunc("/healthz", h.Healthz)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", "err", err)
	}
}
