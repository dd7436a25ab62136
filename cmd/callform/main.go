// Command callform serves the web form that triggers outbound calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/outdial-ai/outdial/internal/dotenv"
	"github.com/outdial-ai/outdial/pkg/outbound"
	"github.com/outdial-ai/outdial/pkg/telephony"
	"github.com/outdial-ai/outdial/pkg/webform"
)

const shutdownGracePeriod = 10 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := dotenv.Load(); err != nil {
		logger.Error("load env files", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("callform server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := outbound.LoadFromEnv()
	if err != nil {
		return err
	}

	addr := strings.TrimSpace(os.Getenv("OUTDIAL_FORM_ADDR"))
	if addr == "" {
		addr = ":5000"
	}

	client := telephony.NewClient(cfg.URL, cfg.APIKey, cfg.APISecret)
	dispatcher := outbound.NewDispatcher(client, cfg, logger)
	form := webform.New(dispatcher, logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           form.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listenErrCh := make(chan error, 1)
	go func() {
		logger.Info("callform listening", "addr", addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-listenErrCh
}
