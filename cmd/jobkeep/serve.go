package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calmstack/jobkeep"
	"github.com/calmstack/jobkeep/internal/config"
	"github.com/calmstack/jobkeep/internal/logger"
)

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg = loaded
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}

	logger.Setup(cfg.Log)

	if cfg.Metrics.Enabled {
		if err := jobkeep.RegisterMetricsDefault(); err != nil {
			slog.Warn("failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := jobkeep.ServeMetrics(cfg.Metrics.Listen); err != nil {
					slog.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	svc, err := jobkeep.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	if cfg.History.DSN != "" {
		sink, err := jobkeep.NewHistorySink(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history sink: %w", err)
		}
		svc.SetHistorySinks(sink)
	}

	// Required dependencies start before the API accepts work and stop on
	// the way out, failed or not.
	var handles []*jobkeep.DependencyHandle
	if len(cfg.Dependencies) > 0 {
		sup := jobkeep.NewSupervisor()
		names := make([]string, 0, len(cfg.Dependencies))
		for _, d := range cfg.Dependencies {
			names = append(names, d.Name)
		}
		handles, err = sup.StartRequired(names, cfg.DependencySpecs())
		defer sup.StopAll(handles)
		if err != nil {
			return fmt.Errorf("start dependencies: %w", err)
		}
	}

	server := jobkeep.NewHTTPServer(cfg.Listen, cfg.BasePath, svc)
	slog.Info("jobkeep daemon listening", "addr", cfg.Listen, "base_path", cfg.BasePath, "data_dir", cfg.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return server.Close()
}
