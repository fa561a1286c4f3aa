// Package world implements spec.md §4.5's facade: createWorld(config)
// detects the configured back-end and wires an Adapter, Storage, Queue,
// Streamer and AuthProvider behind one object, mirroring the reference
// server's pattern of a single composition root constructed once at
// startup and threaded through every handler as a dependency.
package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/adapter"
	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/queue"
	"github.com/ejc3/workflow/pkg/storage"
	"github.com/ejc3/workflow/pkg/streamer"
)

// Config mirrors spec.md §6's environment table.
type Config struct {
	DatabaseType     string
	ConnectionString string
	JobPrefix        string
	QueueConcurrency int
	Executor         queue.Executor
	Auth             AuthProvider
}

// World is the single facade every outer surface (HTTP, CLI) depends on.
// Storage/Queue/Streamer are nil until Start() succeeds: they are built
// from the adapter's *sql.DB/*gorm.DB handles, which only exist once
// Connect() has opened the pool.
type World struct {
	Adapter  adapter.Adapter
	Storage  *storage.Storage
	Queue    queue.Queue
	Streamer streamer.Streamer
	Auth     AuthProvider

	cfg    Config
	gen    *id.Generator
	logger *zap.Logger

	mu      sync.Mutex
	started bool
}

// New validates cfg and constructs the Adapter for the detected back-end
// without opening any connection yet; Storage/Queue/Streamer are wired up
// inside Start(), once Connect() has populated the adapter's DB handles.
func New(cfg Config, logger *zap.Logger) (*World, error) {
	if cfg.JobPrefix == "" {
		cfg.JobPrefix = "workflow_"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 10
	}
	if cfg.Auth == nil {
		cfg.Auth = StaticAuthProvider{}
	}

	a, err := adapter.New(cfg.DatabaseType, cfg.ConnectionString, logger)
	if err != nil {
		return nil, err
	}

	return &World{
		Adapter: a,
		Auth:    cfg.Auth,
		cfg:     cfg,
		gen:     id.NewGenerator(),
		logger:  logger.Named("world"),
	}, nil
}

// Start implements spec.md §4.5: adapter.connect() wires Storage/Queue/
// Streamer against the now-live DB handles, then queue.start(); idempotent
// after the first successful call.
func (w *World) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.Adapter.Connect(ctx); err != nil {
		return err
	}

	w.Storage = storage.New(w.Adapter.DB(), w.gen, w.Adapter.Backend())

	executor := w.cfg.Executor
	if executor == nil {
		executor = queue.ExecutorFunc(func(context.Context, string, json.RawMessage) error { return nil })
	}
	w.Queue = queue.New(w.Adapter.SQLDB(), w.Adapter.Backend(), w.Adapter.NotifyDSN(), w.gen, executor, w.Storage.Steps, queue.DefaultConfig(w.cfg.JobPrefix, w.cfg.QueueConcurrency), w.logger)
	w.Streamer = streamer.New(w.Adapter.SQLDB(), w.Adapter.Backend(), w.Adapter.NotifyDSN(), w.gen, w.logger)

	if err := w.Queue.Start(ctx); err != nil {
		return fmt.Errorf("world: starting queue: %w", err)
	}
	if starter, ok := w.Streamer.(streamer.Starter); ok {
		starter.Start(ctx)
	}
	w.started = true
	w.logger.Info("world started", zap.String("backend", string(w.Adapter.Backend())))
	return nil
}

// Stop drains the queue and closes the adapter's pool.
func (w *World) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return nil
	}
	if err := w.Queue.Stop(ctx); err != nil {
		return err
	}
	w.started = false
	return w.Adapter.Disconnect()
}
