package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/bootstrap"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/config"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	httptransport "github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.LogMode)
	if err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close resources failed", "err", err)
		}
	}()

	// No read or write timeout: retrain responses stream for as long as the
	// job runs and are bounded by the relay's own deadline.
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           httptransport.NewRouter(app),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
