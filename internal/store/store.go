// Package store provides the persistent key-value store the model cache
// writes to. Keys are opaque strings and values opaque bytes.
package store

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
)

// Store is an asynchronous-safe key-value store. Implementations are safe
// for concurrent use.
type Store interface {
	// Initialize prepares the backend. It is safe to call more than once.
	Initialize(ctx context.Context) error
	// IsReady reports whether Initialize has completed successfully.
	IsReady() bool
	// GetItem returns the value for key; ok is false when key is absent.
	GetItem(ctx context.Context, key string) (value []byte, ok bool, err error)
	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value []byte) error
	// Close releases the backend.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"sqlite"`
	// Path is the SQLite file or the Badger directory.
	Path string `yaml:"path" env:"STORE_PATH" env-default:"./aligner-data"`
	// SyncWrites makes Badger fsync every write.
	SyncWrites bool `yaml:"sync_writes" env:"STORE_SYNC_WRITES" env-default:"true"`
	// GCInterval is how often Badger value-log GC runs; 0 disables it.
	GCInterval time.Duration `yaml:"gc_interval" env:"STORE_GC_INTERVAL" env-default:"5m"`
}

// New returns an uninitialized store for cfg.Backend.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendSQLite:
		return NewSQLite(cfg.Path), nil
	case BackendBadger:
		return NewBadger(BadgerConfig{
			Path:           cfg.Path,
			SyncWrites:     cfg.SyncWrites,
			GCInterval:     cfg.GCInterval,
			GCDiscardRatio: 0.5,
		}), nil
	default:
		return nil, apperrors.NewValidation("store.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

// Open creates and initializes a store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func notReady(backend string) error {
	return apperrors.NewIO("use", backend+" store", fmt.Errorf("store not initialized"))
}
