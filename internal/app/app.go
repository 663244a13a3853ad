// Package app wires configuration, storage, search and transport into a
// running registry for the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"conduit-registry/internal/config"
	"conduit-registry/internal/database"
	"conduit-registry/internal/encryption"
	"conduit-registry/internal/httpserver"
	"conduit-registry/internal/registry"
	"conduit-registry/internal/search"
	"conduit-registry/internal/vault"
)

// App is the application layer between the CLI and registry.Service.
// It constructs all dependencies from config and owns their lifecycle;
// the caller must call Close.
type App struct {
	cfg     *config.Config
	op      Operation
	store   *database.SQLiteStore
	service *registry.Service
	logger  *slog.Logger
	logFile io.Closer
	clock   registry.Clock
}

// Options adjusts App construction.
type Options struct {
	// Stderr receives console logs. Required.
	Stderr io.Writer
	// Clock defaults to registry.RealClock.
	Clock registry.Clock
}

// New opens the store, applies pending migrations and builds the Service.
func New(cfg *config.Config, operation string, opts Options) (*App, error) {
	clock := opts.Clock
	if clock == nil {
		clock = registry.RealClock{}
	}
	op := NewOperation(operation, clock.Now())

	logger, logFile, err := NewLogger(cfg.Log, cfg.LogDir, op.ID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	adapter := &slogAdapter{l: logger}
	svc := registry.NewService(store, search.NewEngine(store, adapter), adapter, clock)

	return &App{
		cfg:     cfg,
		op:      op,
		store:   store,
		service: svc,
		logger:  logger,
		logFile: logFile,
		clock:   clock,
	}, nil
}

// Service exposes the registry operations.
func (a *App) Service() *registry.Service {
	return a.service
}

// Store exposes the underlying database for maintenance commands.
func (a *App) Store() *database.SQLiteStore {
	return a.store
}

// Logger returns the process logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// OperatorGrant is the capability used by local admin commands. Running the
// CLI against the database is itself the proof of authority.
func (a *App) OperatorGrant() registry.Grant {
	return registry.OperatorGrant("cli:" + a.op.Name)
}

// Serve runs the HTTP server, and the seeder sweep when enabled, until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	gate := registry.NewGate(a.cfg.Admin.Token)
	if !gate.Enabled() {
		a.logger.Warn("admin token not configured; admin endpoints will refuse every request")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.cfg.Sweep.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.service.StartSweepJob(ctx, a.cfg.Sweep.Interval.Duration, a.cfg.Sweep.Retention.Duration)
		}()
		a.logger.Info("seeder sweep enabled",
			"interval", a.cfg.Sweep.Interval.String(),
			"retention", a.cfg.Sweep.Retention.String(),
		)
	}

	srv := httpserver.New(a.service, httpserver.Options{
		Gate:         gate,
		Logger:       &slogAdapter{l: a.logger},
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	})
	err := srv.Run(ctx, a.cfg.Server)

	cancel()
	wg.Wait()
	return err
}

// Snapshotter builds the snapshot pipeline from the vault and encryption
// config.
func (a *App) Snapshotter(ctx context.Context) (*Snapshotter, error) {
	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return NewSnapshotter(a.store, v, enc, a.clock, &slogAdapter{l: a.logger}), nil
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing log file: %w", err)
	}
	return firstErr
}
