package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visionsla/internal/api"
	"visionsla/internal/audit"
	"visionsla/internal/config"
	"visionsla/internal/ingest"
	"visionsla/internal/logging"
	"visionsla/internal/sla"
	"visionsla/internal/snapshot"
	"visionsla/internal/storage"
	"visionsla/internal/telemetry"
)

var version = "dev"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to configuration file (yaml or json)")
	flag.Parse()

	var cfgManager *config.Manager
	if configPath != "" {
		m, err := config.NewManager(config.ResolvePath(configPath))
		if err != nil {
			slog.Error("failed to load config", "path", configPath, "err", err)
			os.Exit(1)
		}
		cfgManager = m
	} else {
		cfgManager = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := cfgManager.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting visionsla", "version", version, "addr", cfg.API.Addr, "storage", cfg.Storage.Driver)

	if err := telemetry.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	if err := store.Init(initCtx); err != nil {
		cancelInit()
		logger.Error("failed to init storage schema", "err", err)
		os.Exit(1)
	}
	cancelInit()

	snap := snapshot.NewStore(cfg.SLA.SnapshotLimit)
	recent := audit.NewStore(cfg.Audit.RecentEventsRetained)
	updater := sla.NewUpdater(cfgManager, store, snap, logger)
	auditor := audit.NewRecorder(cfgManager, store, recent, logger)

	events := make(chan ingest.Record, cfg.Ingest.ChannelBuffer)
	pipeline := ingest.NewPipeline(cfgManager, store, logger)
	pipeline.Start(ctx, events)
	ingest.StartKafka(ctx, cfgManager, events, logger)
	ingestServer := ingest.StartREST(ctx, cfgManager, events, logger)

	server := api.NewServer(cfgManager, updater, auditor, snap, recent, store, logger, version)
	apiServer := api.Start(ctx, server, logger)

	var metricsServer *http.Server
	if cfg.API.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.API.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", "addr", cfg.API.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", "err", err)
				stop()
			}
		}()
	}

	if configPath != "" {
		go cfgManager.Watch(3*time.Second, func(next *config.Config) {
			logger.Info("config reloaded", "path", cfgManager.Path())
		}, func(err error) {
			logger.Warn("config reload failed", "err", err)
		}, ctx.Done())
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{apiServer, ingestServer, metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("server shutdown", "addr", srv.Addr, "err", err)
		}
	}
	logger.Info("visionsla stopped")
}
