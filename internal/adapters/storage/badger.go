package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

// Keys of the snapshot sections. Each section is one JSON value.
const (
	keyBook    = "coffee/book"
	keyHistory = "coffee/history"
	keyRepeats = "coffee/repeats"
	keyRounds  = "coffee/rounds"

	dirPerm = 0o750
)

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Empty means in-memory.
	Path string
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// GCInterval is how often value log GC runs. 0 disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
	Logger         logger.Logger
}

// DefaultBadgerConfig returns production defaults for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger adapts logger.Logger to badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// BadgerStore persists snapshots in an embedded BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	log logger.Logger

	stopGC   chan struct{}
	gcDone   chan struct{}
	closeErr error
	once     sync.Once
}

// OpenBadger opens or creates the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, dirPerm); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{log: cfg.Logger.Named("badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, log: cfg.Logger}
	if cfg.GCInterval > 0 && cfg.Path != "" {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenBadgerInMemory opens a throwaway in-memory store.
func OpenBadgerInMemory() (*BadgerStore, error) {
	return OpenBadger(BadgerConfig{})
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.log != nil {
				s.log.Warn(context.Background(), "badger value log GC failed", logger.Error(err))
			}
		}
	}
}

// Save implements Store. All sections are written in one transaction.
func (s *BadgerStore) Save(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreSaveLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	sections := map[string]any{
		keyBook:    snap.Book,
		keyHistory: snap.History,
		keyRepeats: snap.Repeats,
		keyRounds:  snap.Rounds,
	}
	encoded := make(map[string][]byte, len(sections))
	for key, v := range sections {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = data
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for key, data := range encoded {
			if err := txn.Set([]byte(key), data); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("storage", "save_failed")
		return s.wrap(err)
	}
	return nil
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLoadLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	found := 0
	err := s.db.View(func(txn *badger.Txn) error {
		targets := map[string]any{
			keyBook:    &snap.Book,
			keyHistory: &snap.History,
			keyRepeats: &snap.Repeats,
			keyRounds:  &snap.Rounds,
		}
		for key, dst := range targets {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, dst)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			found++
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("storage", "load_failed")
		return Snapshot{}, s.wrap(err)
	}
	if found == 0 {
		return Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

func (s *BadgerStore) wrap(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

// Close stops GC and closes the database. Safe to call twice.
func (s *BadgerStore) Close() error {
	s.once.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
