package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spesesync/internal/config"
	"spesesync/internal/kv"
	"spesesync/internal/remote/httpstore"
	memoryremote "spesesync/internal/remote/memory"
)

func TestFactoryCreatesKVBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{KV: KVMemory, Remote: RemoteMemory}},
		{"sqlite", Config{KV: KVSQLite, KVPath: filepath.Join(dir, "client.db"), Remote: RemoteMemory}},
		{"badger", Config{KV: KVBadger, BadgerDir: filepath.Join(dir, "badger"), Remote: RemoteMemory}},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := f.Create(ctx, tt.config)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			defer res.Cleanup()

			if err := res.KV.Set(ctx, "k", []byte("v")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := res.KV.Get(ctx, "k")
			if err != nil || string(got) != "v" {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if _, err := res.KV.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
				t.Errorf("missing key err = %v", err)
			}
			if _, ok := res.Remote.(*memoryremote.Store); !ok {
				t.Errorf("remote = %T", res.Remote)
			}
		})
	}
}

func TestFactoryCreatesHTTPRemote(t *testing.T) {
	rs, err := NewFactory(nil).CreateRemote(context.Background(), Config{
		Remote:        RemoteHTTP,
		RemoteURL:     "http://localhost:8081",
		RemoteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
	if _, ok := rs.(*httpstore.Client); !ok {
		t.Fatalf("remote = %T", rs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{KV: KVMemory, Remote: RemoteMemory}, false},
		{"unknown kv", Config{KV: "redis", Remote: RemoteMemory}, true},
		{"unknown remote", Config{KV: KVMemory, Remote: "ftp"}, true},
		{"sqlite without path", Config{KV: KVSQLite, Remote: RemoteMemory}, true},
		{"badger without dir", Config{KV: KVBadger, Remote: RemoteMemory}, true},
		{"http without url", Config{KV: KVMemory, Remote: RemoteHTTP}, true},
		{"sheets without credentials", Config{KV: KVMemory, Remote: RemoteSheets}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}

	app := &config.Config{
		QueueBackend:   "badger",
		QueueBadgerDir: "/tmp/q",
		RemoteBackend:  "http",
		RemoteURL:      "http://example.com",
		RemoteTimeout:  2 * time.Second,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.KV != KVBadger || cfg.BadgerDir != "/tmp/q" || cfg.Remote != RemoteHTTP || cfg.RemoteTimeout != 2*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
}
