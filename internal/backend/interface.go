package backend

import (
	"context"
	"time"

	"spesesync/internal/kv"
	"spesesync/internal/remote"
	"spesesync/internal/remote/sheets"
)

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

// Result holds the client-side stores selected by Config.
type Result struct {
	KV      kv.Store
	Remote  remote.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateKV(ctx context.Context, config Config) (kv.Store, error)
	CreateRemote(ctx context.Context, config Config) (remote.Store, error)
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds what backend creation needs.
type Config struct {
	KV        KVType
	KVPath    string
	BadgerDir string

	Remote        RemoteType
	RemoteURL     string
	RemoteTimeout time.Duration
	Sheets        sheets.Config
}

// KVType selects the durable key-value store.
type KVType string

const (
	KVMemory KVType = "memory"
	KVSQLite KVType = "sqlite"
	KVBadger KVType = "badger"
)

func (t KVType) String() string { return string(t) }

func (t KVType) IsValid() bool {
	switch t {
	case KVMemory, KVSQLite, KVBadger:
		return true
	default:
		return false
	}
}

// RemoteType selects the remote store.
type RemoteType string

const (
	RemoteHTTP   RemoteType = "http"
	RemoteSheets RemoteType = "sheets"
	RemoteMemory RemoteType = "memory"
)

func (t RemoteType) String() string { return string(t) }

func (t RemoteType) IsValid() bool {
	switch t {
	case RemoteHTTP, RemoteSheets, RemoteMemory:
		return true
	default:
		return false
	}
}
