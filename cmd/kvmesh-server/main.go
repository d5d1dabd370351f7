package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
	"github.com/yndnr/kvmesh-go/internal/infra/shutdown"
	"github.com/yndnr/kvmesh-go/internal/server/config"
	"github.com/yndnr/kvmesh-go/internal/server/kvserver"
	"github.com/yndnr/kvmesh-go/internal/storage/memory"
	"github.com/yndnr/kvmesh-go/internal/storage/userlog"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "kvmesh-server",
		Usage:   "in-memory key-value server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file",
				EnvVars: []string{"KVMESH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (server.addr)",
			},
			&cli.IntFlag{
				Name:  "max-sessions",
				Usage: "concurrent session limit (server.max_sessions)",
			},
			&cli.StringFlag{
				Name:  "users-file",
				Usage: "user registration file (users.file)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Prometheus listen address, empty disables (metrics.addr)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (log.level)",
			},
		},
		Action: run,
	}
}

// flagOverrides maps explicitly set flags onto config keys.
func flagOverrides(c *cli.Context) map[string]any {
	out := map[string]any{}
	if c.IsSet("addr") {
		out["server.addr"] = c.String("addr")
	}
	if c.IsSet("max-sessions") {
		out["server.max_sessions"] = c.Int("max-sessions")
	}
	if c.IsSet("users-file") {
		out["users.file"] = c.String("users-file")
	}
	if c.IsSet("metrics-addr") {
		out["metrics.addr"] = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		out["log.level"] = c.String("log-level")
	}
	return out
}

func loadConfig(path string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := &config.ServerConfig{}
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithDefaults(config.Default().Flatten()),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	configFile := c.String("config")
	overrides := flagOverrides(c)

	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	build := buildinfo.Get()
	log.Info("starting kvmesh-server",
		"version", build.Version,
		"commit", build.Commit,
		"config_file", configFile,
		"config", cfg)

	// Users
	ulog, accounts, err := userlog.Open(cfg.Users.File, log)
	if err != nil {
		return fmt.Errorf("open user file: %w", err)
	}
	users := service.NewUserDirectory(ulog, accounts, log)
	log.Info("users loaded", "file", ulog.Path(), "count", users.Count())

	// Metrics
	metrics := metric.NewRegistry()

	// Store and conditional reads
	store := memory.New()
	getwhen := service.NewGetWhenService(store,
		service.GetWhenConfig{
			Timeout:      cfg.GetWhen.Timeout,
			PollInterval: cfg.GetWhen.PollInterval,
		},
		service.WithGetWhenLogger(log),
		service.WithGetWhenRecorder(metrics))
	store.Observe(getwhen.KeyChanged)

	if err := metrics.Register(metric.NewCollector(store, metric.LenFunc(users.Count))); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}

	srv := kvserver.New(&kvserver.Config{
		Addr:            cfg.Server.Addr,
		MaxSessions:     cfg.Server.MaxSessions,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		CommandRate:     cfg.Server.CommandRate,
		MaxAuthAttempts: cfg.Server.MaxAuthAttempts,
	}, kvserver.Deps{
		Store:    store,
		Users:    users,
		GetWhen:  getwhen,
		Recorder: metrics,
		Logger:   log,
	})

	ctx, stop := shutdown.NotifyContext(c.Context)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	hooks := shutdown.NewHandler(30*time.Second, log)

	// Hooks run in reverse order: sessions first, the user file last.
	hooks.OnShutdown("user file", func(context.Context) error {
		return ulog.Close()
	})

	g.Go(func() error {
		return getwhen.Run(gctx)
	})

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	hooks.OnShutdown("kv server", srv.Shutdown)

	if cfg.Metrics.Addr != "" {
		httpSrv := newMetricsServer(cfg.Metrics.Addr, metrics)
		g.Go(func() error {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		hooks.OnShutdown("metrics server", httpSrv.Shutdown)
	}

	if configFile != "" {
		w, err := confloader.NewWatcher(configFile, confloader.WithWatcherLogger(log))
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			w.OnChange(func(path string) {
				reload(log, path, overrides)
			})
			g.Go(func() error {
				return w.Run(gctx)
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return hooks.Shutdown()
	})

	log.Info("server started, press Ctrl+C to stop")
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func newMetricsServer(addr string, metrics *metric.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// reload applies the settings that can change at runtime.
func reload(log *slog.Logger, path string, overrides map[string]any) {
	cfg, err := loadConfig(path, overrides)
	if err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}

	before := logger.GetLevel()
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}
	if after := logger.GetLevel(); after != before {
		log.Info("log level changed", "from", before, "to", after)
	}
}
