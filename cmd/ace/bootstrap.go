package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"gemex-ace/internal/backup"
	"gemex-ace/internal/engine"
	"gemex-ace/internal/engine/engineobs"
	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/playbook"
	"gemex-ace/internal/store"
	"gemex-ace/internal/trace"
	"gemex-ace/internal/tradelog"
)

var version = "dev"

// app holds everything a command needs after bootstrap.
type app struct {
	cfg      *store.Config
	playbook *playbook.Store
	sessions *tradelog.Store
}

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig reads path, falling back to defaults when the file does not exist
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn(ctx, "Config file not found, using defaults", "path", path)
		return store.Default(), nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		playbook: playbook.NewStore(cfg.Paths.Playbook, cfg.Paths.PlaybookHistory),
		sessions: tradelog.New(tradelog.Layout{
			SessionsDir:    cfg.Paths.Sessions,
			ReflectionsDir: cfg.Paths.Reflections,
		}),
	}
	if err := a.playbook.Init(); err != nil {
		return nil, err
	}
	if err := a.sessions.Init(); err != nil {
		return nil, err
	}
	a.compressOldDebug(ctx)
	return a, nil
}

// compressOldDebug gzips raw model responses past the retention window.
// ACE_RETENTION_DAYS overrides the configured value.
func (a *app) compressOldDebug(ctx context.Context) {
	days := a.cfg.Retention.DebugDays
	if v := os.Getenv("ACE_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn(ctx, "Ignoring invalid ACE_RETENTION_DAYS", "value", v)
		} else {
			days = n
		}
	}
	if err := a.sessions.CompressOlder(days); err != nil {
		logger.Warn(ctx, "Failed to compress old debug files", "error", err)
	}
}

// initializeEngine builds the engine with observability
func (a *app) initializeEngine(ctx context.Context) (interfaces.Engine, error) {
	eng, err := engine.NewFromConfig(ctx, a.cfg, a.playbook, a.sessions)
	if err != nil {
		return nil, err
	}
	return engineobs.Wrap(eng), nil
}

func (a *app) initializeBackup(ctx context.Context) (*backup.Manager, error) {
	if a.cfg.Backup.Bucket == "" {
		return nil, errors.New("backup.bucket is not configured")
	}
	client, err := backup.NewS3Client(ctx, a.cfg.Backup.Region, a.cfg.Backup.Endpoint)
	if err != nil {
		return nil, err
	}
	return backup.New(client, a.cfg, "."), nil
}
