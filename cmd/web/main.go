// File metadata web UI
//
// Serves the lookup page on WEB_ADDR and forwards lookups to the metadata
// service at BASE_URL.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/config"
	"github.com/VinodKandula/file-metadata-app/internal/events"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/view"
	"github.com/VinodKandula/file-metadata-app/internal/web"
	"github.com/VinodKandula/file-metadata-app/pkg/client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	c := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.ClientTimeout,
		AuthToken: cfg.AuthToken,
		Logger:    logging.Named("client"),
	})

	logging.Info("file metadata web UI starting...",
		zap.String("listen", cfg.WebAddr),
		zap.String("base_url", c.BaseURL()))

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := c.Ping(pingCtx); err != nil {
		logging.Warn("metadata service not reachable yet", zap.Error(err))
	}
	cancel()

	v := view.New(c,
		view.WithBroadcaster(events.NewBroadcaster()),
		view.WithLogger(logging.Named("view")))

	srv, err := web.NewServer(v)
	if err != nil {
		logging.Fatal("web init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		// Close rather than Shutdown: open SSE streams never go idle.
		httpServer.Close()
	}()

	logging.Info("web UI listening", zap.String("addr", cfg.WebAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
