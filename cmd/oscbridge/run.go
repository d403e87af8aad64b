package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/admin"
	"github.com/amoylab/oscbridge/internal/bridge"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/internal/notifier"
	"github.com/amoylab/oscbridge/pkg/helper"
	"github.com/amoylab/oscbridge/pkg/logger"
	"github.com/amoylab/oscbridge/pkg/metrics"
	"github.com/amoylab/oscbridge/pkg/utils"
	"github.com/amoylab/oscbridge/pkg/version"
)

func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := helper.GetCfgPath(configPath)
	store, err := config.NewStore(cfgPath)
	if err != nil {
		return err
	}
	cfg, err := store.Config()
	if err != nil {
		return err
	}

	logger.ResolveOutput(&cfg.Logger, filepath.Dir(cfgPath), forceStdout)
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("Starting oscbridge",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	if err := runBridge(ctx, lg, store, cfg); err != nil {
		lg.Error("oscbridge stopped with error", zap.Error(err))
		return err
	}
	lg.Info("oscbridge stopped")
	return nil
}

func runBridge(ctx context.Context, lg *zap.Logger, store *config.Store, cfg *config.BridgeConfig) error {
	// persist defaults so the file lists every available key
	if err := store.Save(); err != nil {
		lg.Warn("failed to save configuration", zap.Error(err))
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = cfg.PID
	}
	pid := utils.NewPIDManager(helper.GetPIDPath(pidPath))
	if err := pid.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = pid.RemovePID() }()

	m := metrics.New(cfg.Metrics)
	b, err := bridge.New(store, lg, m)
	if err != nil {
		return err
	}

	cfg.Notifier.Signal.PID = pid.GetPIDFile()
	ntf, err := notifier.NewNotifier(ctx, lg, &cfg.Notifier, config.RoleReceiver)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	reloads, err := ntf.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch for reload requests: %w", err)
	}
	go func() {
		for range reloads {
			lg.Info("reload requested")
			b.Reload()
		}
	}()

	if cfg.Admin.Port > 0 {
		srv := admin.NewServer(lg, b, m)
		if err := srv.Start(cfg.Admin); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
