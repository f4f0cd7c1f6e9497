package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"metagate/config"
	"metagate/core/events"
	"metagate/core/metatx"
	"metagate/core/replay"
	"metagate/gateway/middleware"
	"metagate/gateway/routes"
	"metagate/observability/logging"
	"metagate/observability/metrics"
	telemetry "metagate/observability/otel"
	"metagate/rpc"
	"metagate/storage"
	"metagate/storage/eventlog"
)

const serviceName = "metagated"

var healthProbeKey = []byte("metagate/health")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("metagated exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	n, err := newNode(cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	handler := n.handler
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(handler, serviceName)
	}
	srv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relayer API listening",
			slog.String("address", cfg.RPCAddress),
			slog.String("policy", string(n.gateway.Policy())),
			slog.String("target", n.gateway.Target().Hex()),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// node bundles the gateway with its storage and HTTP surface.
type node struct {
	gateway *metatx.Gateway
	db      storage.Database
	archive *eventlog.Archive
	handler http.Handler
	closers []io.Closer
}

func newNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	target, err := cfg.TargetAddress()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.ReplayPolicy()
	if err != nil {
		return nil, err
	}
	protector, err := replay.New(policy)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Backend, err)
	}
	n := &node{db: db}

	emitters := events.Fanout{}
	var eventSource rpc.EventSource
	if cfg.EventArchive != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.EventArchive), 0o755); err != nil {
			n.Close()
			return nil, err
		}
		archive, err := eventlog.Open(cfg.EventArchive, logger)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("open event archive: %w", err)
		}
		archived, err := archive.Count(context.Background())
		if err != nil {
			_ = archive.Close()
			n.Close()
			return nil, fmt.Errorf("count archived events: %w", err)
		}
		logger.Info("event archive opened",
			slog.String("path", cfg.EventArchive),
			slog.Int64("events", archived),
		)
		n.archive = archive
		n.closers = append(n.closers, archive)
		emitters = append(emitters, archive)
		eventSource = archive
	}

	gw, err := metatx.New(target, protector, db,
		metatx.WithEmitter(emitters),
		metatx.WithLogger(logger),
		metatx.WithMetrics(metrics.MetaTx()),
	)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.gateway = gw

	requireScope := ""
	if cfg.Auth.Enabled {
		requireScope = cfg.Auth.SubmitScope
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	}, logger)
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: serviceName,
		LogRequests: true,
		Enabled:     true,
	}, logger)
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		routes.RateLimitKey(): {
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, logger)

	handler, err := routes.New(routes.Config{
		RPC: rpc.NewServer(gw, rpc.ServerConfig{
			RequireScope: requireScope,
			Events:       eventSource,
			Logger:       logger,
		}),
		Health: func() error {
			_, err := db.Get(healthProbeKey)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		},
		Authenticator: auth,
		RateLimiter:   limiter,
		Observability: obs,
	})
	if err != nil {
		n.Close()
		return nil, err
	}
	n.handler = handler
	return n, nil
}

func (n *node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		_ = n.closers[i].Close()
	}
	if n.db != nil {
		n.db.Close()
	}
}
