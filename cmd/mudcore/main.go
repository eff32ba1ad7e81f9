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
	"strings"
	"syscall"
	"time"

	"github.com/mudcore/mudcore/internal/masterobj"
	"github.com/mudcore/mudcore/pkg/api"
	"github.com/mudcore/mudcore/pkg/config"
	"github.com/mudcore/mudcore/pkg/driver"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.Error("mudcore exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("mudcore", flag.ContinueOnError)
	configPath := flagSet.String("config", "", "Path to configuration file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	drv, err := driver.New(logger, driver.Config{
		MudlibPath:          cfg.MudlibPath,
		MasterObjectPath:    cfg.MasterObjectPath,
		Port:                cfg.Port,
		HeartbeatIntervalMs: cfg.HeartbeatIntervalMs,
		LogLevel:            cfg.LogLevel,
		HotReloadEnabled:    cfg.HotReloadEnabled,
		DataPath:            cfg.Persistence.DataPath,
		ProtectedPaths:      cfg.Permissions.ProtectedPaths,
		AutoSaveIntervalMs:  cfg.Persistence.AutoSaveIntervalMs,
	}, masterobj.New, masterobj.Source)
	if err != nil {
		return fmt.Errorf("build driver: %w", err)
	}

	if err := drv.Start(ctx); err != nil {
		return fmt.Errorf("start driver: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := drv.Stop(stopCtx); err != nil {
			logger.Error("driver stop error", "error", err)
		}
	}()

	if !cfg.HTTP.Enable {
		logger.Info("mudcore running without the admin API", "master", cfg.MasterObjectPath)
		<-ctx.Done()
		return nil
	}

	apiCfg := api.Config{Enable: cfg.HTTP.Enable, Addr: cfg.HTTP.Addr, APIKey: cfg.HTTP.APIKey, DevMode: cfg.HTTP.DevMode}
	server := api.NewServer(apiCfg, drv, logger)
	httpSrv := &http.Server{Addr: server.Addr(), Handler: server.Engine()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("admin api listening", "addr", server.Addr())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("admin api stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "VERBOSE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
