package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/memval/internal/config"
	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/live"
	"github.com/vango-dev/memval/pkg/memval"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve NAME...",
		Short: "Serve values over HTTP and WebSocket",
		Long: `Serve the named values. Each value is read from the configured
backend and every change is written back.

Routes:
  GET    /values              list served names
  GET    /values/{name}       current state
  PUT    /values/{name}       store a JSON body
  DELETE /values/{name}       remove the slot
  POST   /values/{name}/eval  apply {"expr": "..."}
  GET    /values/{name}/ws    stream states, accept ops
  GET    /metrics             Prometheus metrics

Examples:
  memval serve theme visits
  memval serve --addr 127.0.0.1:9000 theme`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd, args)
		},
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Address to listen on")
	a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command, names []string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	memval.EnableMetrics()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := live.NewRegistry()
	values := make([]*memval.StoredValue[any], 0, len(names))
	for _, name := range names {
		value := a.bind(store, name)
		if err := registry.Register(name, value); err != nil {
			return errors.New("M140").WithDetail(err.Error())
		}
		values = append(values, value)
	}

	sc := a.cfg.Server
	server := live.New(registry, &live.Config{
		Logger:            logger,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		HeartbeatInterval: sc.Heartbeat,
		CheckOrigin:       checkOrigin(sc.AllowedOrigins),
	})

	httpServer := &http.Server{
		Addr:              sc.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving values", "addr", sc.Addr, "names", names, "backend", a.cfg.Storage.Backend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.New("M141").Wrap(err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down", "connections", server.Connections())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	for _, value := range values {
		if err := value.Flush(shutdownCtx); err != nil {
			logger.Warn("pending writes dropped", "key", value.Key(), "error", err)
		}
	}
	return nil
}

// checkOrigin returns nil (same origin only) for an empty list; "*" allows all.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
