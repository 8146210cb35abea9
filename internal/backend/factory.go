package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spesesync/internal/kv"
	badgerkv "spesesync/internal/kv/badger"
	memorykv "spesesync/internal/kv/memory"
	sqlitekv "spesesync/internal/kv/sqlite"
	"spesesync/internal/remote"
	"spesesync/internal/remote/httpstore"
	memoryremote "spesesync/internal/remote/memory"
	"spesesync/internal/remote/sheets"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateKV(_ context.Context, config Config) (kv.Store, error) {
	switch config.KV {
	case KVSQLite:
		s, err := sqlitekv.Open(config.KVPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite kv store: %w", err)
		}
		f.logger.Info("Initialized SQLite kv store", "db_path", config.KVPath)
		return s, nil
	case KVBadger:
		s, err := badgerkv.Open(config.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("open badger kv store: %w", err)
		}
		f.logger.Info("Initialized Badger kv store", "dir", config.BadgerDir)
		return s, nil
	case KVMemory:
		f.logger.Info("Initialized memory kv store, queue will not survive restarts")
		return memorykv.New(), nil
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", config.KV)
	}
}

func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (remote.Store, error) {
	switch config.Remote {
	case RemoteHTTP:
		f.logger.Info("Initialized HTTP remote store", "url", config.RemoteURL, "timeout", config.RemoteTimeout)
		return httpstore.New(config.RemoteURL, config.RemoteTimeout), nil
	case RemoteSheets:
		s, err := sheets.New(ctx, config.Sheets)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets remote store: %w", err)
		}
		return s, nil
	case RemoteMemory:
		f.logger.Info("Initialized memory remote store")
		return memoryremote.New(), nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
}

// Create opens both stores. On failure anything already opened is closed.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	store, err := f.CreateKV(ctx, config)
	if err != nil {
		return nil, err
	}
	rs, err := f.CreateRemote(ctx, config)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return &Result{KV: store, Remote: rs, Cleanup: store.Close}, nil
}
