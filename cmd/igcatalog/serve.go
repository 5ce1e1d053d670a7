package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/igcatalog/pkg/api"
	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
)

const shutdownTimeout = 15 * time.Second

func runServe(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var port string
	cmd.StringVar(&port, "port", "", "Listen port (overrides PORT)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(context.Background())
	if port != "" {
		a.cfg.Port = port
	}

	c, err := a.loadChain(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to build catalog", "error", err)
		return 1
	}
	holder := chain.NewHolder(c)

	v, err := a.newValidator(holder)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to build validator", "error", err)
		return 2
	}
	if err := v.Warmup(ctx); err != nil {
		a.logger.ErrorContext(ctx, "warm-up failed", "error", err)
		return 1
	}

	limiter := api.NewRateLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           api.NewServer(v, holder, limiter).Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "listening", "addr", srv.Addr, "sources", len(c.Sources()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.ErrorContext(ctx, "server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "server stopped")
	return 0
}
