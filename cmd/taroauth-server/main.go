// Command taroauth-server serves the taroAuth HTTP API.
//
// Configuration comes from an optional YAML file (-config), then a .env file
// in the working directory, then TAROAUTH_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/httpapi"
	otelexport "github.com/MrEthical07/taroAuth/metrics/export/otel"
	"github.com/MrEthical07/taroAuth/routes"
	"github.com/MrEthical07/taroAuth/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"
)

// otelCollectInterval is how often the in-process OTel reader is collected and logged.
const otelCollectInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "taroauth-server failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := taroAuth.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		MaxConns:  cfg.Database.MaxConns,
		SeedAdmin: cfg.Database.SeedAdmin,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.Server.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Server.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	table := routes.Default()
	if cfg.Server.RoutesFile != "" {
		table, err = routes.Load(cfg.Server.RoutesFile)
		if err != nil {
			return fmt.Errorf("load routes: %w", err)
		}
	}

	b := taroAuth.New().
		WithConfig(cfg).
		WithStore(st).
		WithRoutes(table).
		WithLogger(logger).
		WithAuditSink(auditSink(cfg.Audit, st, logger))
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())
	otel.SetMeterProvider(provider)
	otelExp, err := otelexport.NewOTelExporter(provider.Meter("taroauth"), engine)
	if err != nil {
		return fmt.Errorf("otel exporter: %w", err)
	}
	defer otelExp.Close()

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(engine, httpapi.WithLogger(logger))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", "addr", srv.Addr, "redis", rdb != nil, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := engine.Sessions().RunSweeper(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			collectMetrics(gctx, reader, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "taroauth")
}

func collectMetrics(ctx context.Context, reader *sdkmetric.ManualReader, logger *slog.Logger) {
	ticker := time.NewTicker(otelCollectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var rm metricdata.ResourceMetrics
			if err := reader.Collect(ctx, &rm); err != nil {
				logger.Warn("otel collect failed", "error", err)
				continue
			}
			n := 0
			for _, sm := range rm.ScopeMetrics {
				n += len(sm.Metrics)
			}
			logger.Debug("otel metrics collected", "instruments", n)
		}
	}
}

// auditSink writes login events to login_logs and, with json_lines set,
// every event to stderr as well.
func auditSink(cfg taroAuth.AuditConfig, st *store.Store, logger *slog.Logger) taroAuth.AuditSink {
	sink := taroAuth.AuditSink(taroAuth.NewStoreAuditSink(st, logger))
	if cfg.JSONLines {
		sink = taroAuth.MultiSink{sink, taroAuth.NewJSONWriterSink(os.Stderr)}
	}
	return sink
}
