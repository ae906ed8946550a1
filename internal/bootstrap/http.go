package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/probeworks/apiprobe/config"
	httpx "github.com/probeworks/apiprobe/internal/http"
)

// Server timeouts. Single runs execute the target request inline, so a
// response can take as long as the slowest configured API timeout.
const (
	serverReadTimeout  = 30 * time.Second
	serverWriteTimeout = 5 * time.Minute
	serverIdleTimeout  = 120 * time.Second

	httpShutdownTimeout = 10 * time.Second
)

// HTTPServerConfig carries what the HTTP surface needs from the container.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer wires the router, wraps it in middleware, and begins
// serving in the background. The returned server is used for shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Apis:         cfg.Services.Apis,
		Tasks:        cfg.Services.Tasks,
		Reports:      cfg.Services.Reports,
		Runner:       cfg.Services.Batches,
		Progress:     cfg.Services.Progress,
		Scheduler:    cfg.Services.Scheduler,
		Driver:       cfg.Services.Driver,
		RedisConfigs: cfg.Services.Connections,
		Captcha:      cfg.Services.RedisUnit,
		BatchTimeout: appCfg.HTTP.BatchTimeout,
		Logger:       logger,
	})

	// Recover outermost so a panic in the logging layer is still caught.
	handler := httpx.Recover(logger)(httpx.Logging(logger)(router))

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer drains in-flight requests, bounded by a timeout.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
