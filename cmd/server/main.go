// claude-relay - HTTP relay for a remote terminal AI assistant session.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/claude-relay/internal/api"
	"github.com/ashureev/claude-relay/internal/config"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/health"
	"github.com/ashureev/claude-relay/internal/logging"
	"github.com/ashureev/claude-relay/internal/middleware"
	"github.com/ashureev/claude-relay/internal/terminal"
	"github.com/ashureev/claude-relay/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

// endpointer is implemented by every executor backend.
type endpointer interface {
	executor.Executor
	Endpoint() string
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a TOML config file (overrides CONFIG_FILE)")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(cfg.Log)
	defer func() {
		if closeErr := logCloser.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", closeErr)
		}
	}()

	slog.Info("Starting server",
		"port", cfg.Port,
		"executor", cfg.Executor,
		"endpoint", cfg.Endpoint(),
		"remote", cfg.Remote,
	)

	remote := config.NewRemoteCell(cfg.Remote)

	backend, closeBackend, err := newExecutor(cfg, remote)
	if err != nil {
		slog.Error("Failed to initialize executor", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeBackend.Close(); closeErr != nil {
			slog.Error("Failed to close executor", "error", closeErr)
		}
	}()
	slog.Info("Executor initialized", "executor", cfg.Executor, "endpoint", backend.Endpoint())

	// Path first so the timeout and limiter see the final command.
	var exec executor.Executor = executor.WithPath(backend, func() string { return remote.Load().PathPrefix })
	exec = executor.WithTimeout(exec, cfg.ExecutorTimeout)
	exec = executor.Limited(exec, rate.NewLimiter(rate.Limit(cfg.ExecutorRate), cfg.ExecutorBurst))

	// Initialize services.
	cache := &terminal.LastSeen{}
	fetcher := terminal.NewFetcher(exec, remote)
	poller := terminal.NewPoller(fetcher, cache, cfg.Poll)
	controller := terminal.NewController(exec, remote)
	watchers := terminal.NewWatcherManager()

	// Initialize handlers.
	handler := api.NewHandler(controller, fetcher, poller, cache)
	healthHandler := api.NewHealthHandler(backend.Endpoint, cache)
	watchHandler := terminal.NewWatchHandler(poller, watchers, cfg.AllowedOrigins)
	index := web.IndexHandler(web.Assets())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r, cfg.RequestTimeout)
	r.Get("/ws/output", watchHandler.ServeHTTP)
	r.Get("/", index.ServeHTTP)
	r.Get("/index.html", index.ServeHTTP)
	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.NotFound)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // 0 = no timeout; /ws/output streams indefinitely
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.File != "" {
		startConfigWatcher(ctx, cfg.File, remote)
	}

	var healthSrv *health.Server
	if cfg.GRPCHealthPort != "" {
		healthSrv, err = startHealthServer(ctx, cfg, exec)
		if err != nil {
			slog.Error("Failed to start gRPC health server", "error", err)
			os.Exit(1)
		}
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	watchers.CloseAll()
	if healthSrv != nil {
		healthSrv.Stop()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server stopped successfully")
}

// newExecutor builds the configured backend. The returned closer releases
// backend resources.
func newExecutor(cfg *config.Config, remote *config.RemoteCell) (endpointer, io.Closer, error) {
	switch cfg.Executor {
	case config.ExecutorSSH:
		return executor.NewSSHExecutor(remote), nopCloser{}, nil
	case config.ExecutorDocker:
		d, err := executor.NewDockerExecutor(cfg.DockerContainer, "")
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	default:
		client := &http.Client{Timeout: cfg.ExecutorTimeout + 5*time.Second}
		return executor.NewHTTPExecutor(cfg.CmdAPIURL, remote, client), nopCloser{}, nil
	}
}

// startConfigWatcher swaps the remote settings whenever the config file
// changes. Anyone who can write the file can retarget the relay.
func startConfigWatcher(ctx context.Context, path string, remote *config.RemoteCell) {
	w, err := config.NewWatcher(path, func(next *config.Config) {
		remote.Store(next.Remote)
	})
	if err != nil {
		slog.Warn("Config hot reload disabled", "path", path, "error", err)
		return
	}
	go w.Run(ctx)
	slog.Info("Config hot reload enabled", "path", path)
}

func startHealthServer(ctx context.Context, cfg *config.Config, exec executor.Executor) (*health.Server, error) {
	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return nil, fmt.Errorf("listen on gRPC health port %s: %w", cfg.GRPCHealthPort, err)
	}

	srv := health.NewServer()
	go func() {
		slog.Info("gRPC health server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			slog.Error("gRPC health server failed", "error", err)
		}
	}()

	health.NewProber(exec, srv, cfg.ProbeInterval, cfg.ExecutorTimeout).Start(ctx)
	return srv, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
