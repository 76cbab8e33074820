// File metadata server
//
// Serves metadata for local files and directories:
//   - GET /filemetadata/file?path=...
//   - GET /filemetadata/directory?path=... (recursive)
//   - GET /health
//
// Prometheus metrics are served on a separate listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/api"
	"github.com/VinodKandula/file-metadata-app/internal/auth"
	"github.com/VinodKandula/file-metadata-app/internal/config"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/internal/quota"
	"github.com/VinodKandula/file-metadata-app/internal/storage"
)

func main() {
	issueToken := flag.String("issue-token", "", "Print a bearer token for this subject and exit (requires AUTH_SECRET)")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if *issueToken != "" {
		if cfg.AuthSecret == "" {
			fmt.Fprintln(os.Stderr, "AUTH_SECRET must be set to issue tokens")
			os.Exit(1)
		}
		token, expires, err := auth.New(cfg.AuthSecret).IssueToken(*issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error issuing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
		return
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("file metadata server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	store, err := storage.NewLocalStorage(cfg.RootDir)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	if root := store.RootDir(); root != "" {
		logging.Info("lookups confined to root", zap.String("root", root))
	} else {
		logging.Warn("ROOT_DIR not set, any readable path can be looked up")
	}

	opts := []api.Option{
		api.WithAppName(cfg.AppName),
		api.WithGzip(cfg.Gzip),
	}
	if cfg.AuthSecret != "" {
		opts = append(opts, api.WithAuth(auth.New(cfg.AuthSecret)))
		logging.Info("token authentication enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RateLimit > 0 {
		limiter := quota.NewRateLimiter(cfg.RateLimit)
		opts = append(opts, api.WithRateLimit(limiter))
		logging.Info("rate limiting enabled", zap.Int("rpm", cfg.RateLimit))

		// Periodic cleanup of idle client buckets
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := limiter.Cleanup(time.Hour); n > 0 {
						logging.Debug("rate limiter cleanup", zap.Int("removed", n))
					}
				}
			}
		}()
	}
	srv := api.NewServer(store, opts...)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
