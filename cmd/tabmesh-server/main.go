// Package main provides the entry point for tabmesh-server.
//
// tabmesh-server is the core service process for TabMesh, a
// session-scoped table store with versioned snapshot history.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/tabmesh-go/internal/audit"
	"github.com/yndnr/tabmesh-go/internal/core/service"
	"github.com/yndnr/tabmesh-go/internal/infra/confloader"
	"github.com/yndnr/tabmesh-go/internal/infra/shutdown"
	"github.com/yndnr/tabmesh-go/internal/ingest"
	"github.com/yndnr/tabmesh-go/internal/persist"
	"github.com/yndnr/tabmesh-go/internal/server/config"
	"github.com/yndnr/tabmesh-go/internal/server/httpserver"
	"github.com/yndnr/tabmesh-go/internal/store"
	"github.com/yndnr/tabmesh-go/internal/telemetry/logger"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("tabmesh-server %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	log.Info("starting tabmesh-server",
		"version", version,
		"commit", commit,
		"config", *configFile)

	// Initialize metrics
	metrics := metric.New()

	// Initialize persistence (optional)
	var adapter persist.Adapter
	if cfg.Persistence.Enabled {
		badgerCfg := persist.BadgerConfig{
			Dir:        cfg.Persistence.Dir,
			SyncWrites: cfg.Persistence.SyncWrites,
			GCInterval: cfg.Persistence.GCInterval,
		}
		if cfg.Persistence.EncryptionSecret != "" {
			badgerCfg.EncryptionKey = persist.DeriveKey(cfg.Persistence.EncryptionSecret)
		}
		a, err := persist.NewBadgerAdapter(badgerCfg, log, metrics.Registerer())
		if err != nil {
			return fmt.Errorf("open persistence: %w", err)
		}
		adapter = a
		log.Info("persistence enabled", "dir", cfg.Persistence.Dir,
			"encrypted", cfg.Persistence.EncryptionSecret != "")
	}

	// Initialize the session manager. Evicted sessions drop their
	// persisted snapshots too.
	mgrCfg := store.ManagerConfig{
		TTL:             cfg.Session.TTL,
		SweepInterval:   cfg.Session.SweepInterval,
		MaxSessionBytes: cfg.Session.MaxSizeBytes,
		MaxHistory:      cfg.Session.MaxHistory,
		Logger:          log,
		Metrics:         metrics,
	}
	if adapter != nil {
		mgrCfg.OnEvict = func(sessionID string, tables []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := adapter.DeleteSession(ctx, sessionID); err != nil {
				log.Warn("failed to clear persisted session",
					"session_id", sessionID, "error", err)
			}
		}
	}
	sessions := store.NewManager(mgrCfg)
	sessions.Start()

	// Initialize ingestion loader
	var loader ingest.Loader
	if cfg.Ingestion.TLSCAFile != "" {
		loader, err = ingest.NewHTTPLoaderTLS(cfg.Ingestion.BaseURL, cfg.Ingestion.Timeout, cfg.Ingestion.TLSCAFile)
		if err != nil {
			return fmt.Errorf("ingestion TLS setup: %w", err)
		}
	} else {
		loader = ingest.NewHTTPLoader(cfg.Ingestion.BaseURL, cfg.Ingestion.Timeout)
	}

	// Initialize audit publisher (optional)
	var auditor service.AuditPublisher
	var auditPub *audit.Publisher
	if cfg.Audit.Enabled {
		auditPub = audit.NewPublisher(audit.Config{
			Brokers: cfg.Audit.Brokers,
			Topic:   cfg.Audit.Topic,
			Timeout: cfg.Audit.Timeout,
		}, log, metrics)
		auditor = auditPub
		log.Info("audit stream enabled", "topic", cfg.Audit.Topic)
	}

	// Initialize the table service and router
	tableSvc := service.NewTableService(sessions, loader, adapter, auditor, log, metrics)

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		TableService:   tableSvc,
		Logger:         log,
		Metrics:        metrics,
		RateLimitRPS:   cfg.Server.RateLimit.RPS,
		RateLimitBurst: cfg.Server.RateLimit.Burst,
	})

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	// Setup graceful shutdown
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Register shutdown hooks (reverse order of startup)
	if adapter != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("closing persistence")
			return adapter.Close()
		})
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping session manager")
		sessions.Close()
		return nil
	})
	if auditPub != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("closing audit publisher")
			return auditPub.Close()
		})
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	// Watch the config file so log-level edits apply without a
	// restart. A failed reload keeps the running settings.
	if *configFile != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := watcher.Watch(*configFile); err != nil {
			return fmt.Errorf("watch config file: %w", err)
		}
		currentLevel := cfg.Log.Level
		watcher.OnChange(func(path string) {
			next, err := loadConfig(*configFile)
			if err != nil {
				log.Warn("config reload failed, keeping current settings",
					"path", path, "error", err)
				return
			}
			if next.Log.Level != currentLevel {
				logger.SetLevel(next.Log.Level)
				log.Info("log level changed", "from", currentLevel, "to", next.Log.Level)
				currentLevel = next.Log.Level
			}
		})
		watcher.StartAsync()
		shutdownHandler.OnShutdown(func(context.Context) error {
			return watcher.Stop()
		})
	}

	// Start HTTP server in goroutine
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		var err error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	// Start with defaults
	cfg := config.Default()

	// Create loader with optional config file
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)

	// Load and unmarshal
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
