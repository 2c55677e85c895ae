package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCInterval is how often value-log GC runs. 0 disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// Logger receives Badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger stores items in an embedded Badger database.
type Badger struct {
	cfg BadgerConfig

	mu     sync.RWMutex
	db     *badger.DB
	stopGC context.CancelFunc
	gcDone chan struct{}
}

// NewBadger returns a store for cfg. Nothing is opened until Initialize.
func NewBadger(cfg BadgerConfig) *Badger {
	return &Badger{cfg: cfg}
}

func (b *Badger) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}
	if !b.cfg.InMemory && b.cfg.Path == "" {
		return apperrors.NewValidation("store.path", "path is required for persistent database")
	}

	var opts badger.Options
	if b.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(b.cfg.Path, 0o750); err != nil {
			return apperrors.NewIO("create", b.cfg.Path, err)
		}
		opts = badger.DefaultOptions(b.cfg.Path)
	}
	opts = opts.WithSyncWrites(b.cfg.SyncWrites).WithNumVersionsToKeep(1)
	if b.cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: b.cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return apperrors.NewIO("open", b.cfg.Path, err)
	}
	b.db = db

	if b.cfg.GCInterval > 0 && !b.cfg.InMemory {
		gcCtx, cancel := context.WithCancel(context.Background())
		b.stopGC = cancel
		b.gcDone = make(chan struct{})
		go b.runGC(gcCtx, db)
	}
	logging.Debug("badger store ready", "path", b.cfg.Path, "in_memory", b.cfg.InMemory)
	return nil
}

func (b *Badger) runGC(ctx context.Context, db *badger.DB) {
	defer close(b.gcDone)
	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing needed collecting.
			if err := db.RunValueLogGC(b.cfg.GCDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

func (b *Badger) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db != nil
}

func (b *Badger) handle() (*badger.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, notReady(BackendBadger)
	}
	return b.db, nil
}

func (b *Badger) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	db, err := b.handle()
	if err != nil {
		return nil, false, err
	}
	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewIO("read", key, err)
	}
	return value, true, nil
}

func (b *Badger) SetItem(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := b.handle()
	if err != nil {
		return err
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return apperrors.NewIO("write", key, err)
	}
	return nil
}

func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	if b.stopGC != nil {
		b.stopGC()
		<-b.gcDone
		b.stopGC = nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
