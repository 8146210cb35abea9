package app

import (
	"context"
	"fmt"
	"log/slog"

	"spesesync/internal/backend"
	"spesesync/internal/config"
	"spesesync/internal/connectivity"
	"spesesync/internal/queue"
	"spesesync/internal/remote"
	"spesesync/internal/snapshot"
	"spesesync/internal/syncer"
)

// Runtime is a fully wired client: durable queue, snapshot cache, sync
// driver and the Service facade over them.
type Runtime struct {
	Service  *Service
	Queue    *queue.Queue
	Driver   *syncer.Driver
	Snapshot *snapshot.Source
	Remote   remote.Store

	cleanup backend.CleanupFunc
}

// Open builds a Runtime from cfg. probe answers whether the remote store is
// reachable; listeners receive every sync status change.
func Open(ctx context.Context, cfg *config.Config, probe connectivity.Probe, listeners ...syncer.Listener) (*Runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(slog.Default()).Create(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	q := queue.Open(ctx, queue.NewStore(res.KV))
	src := snapshot.New(res.Remote, res.KV, snapshot.Config{TTL: cfg.CacheTTL})

	opts := []syncer.Option{
		syncer.WithOnline(probe.Reachable),
		syncer.WithInvalidate(src.Invalidate),
	}
	for _, l := range listeners {
		opts = append(opts, syncer.WithListener(l))
	}
	d := syncer.New(q, res.Remote, opts...)

	svc := New(q, d, src, res.Remote,
		WithOnline(probe.Reachable),
		WithDirect(cfg.DirectWrites),
		WithPageSize(cfg.PageSize),
	)

	slog.InfoContext(ctx, "Client runtime ready",
		"queue_backend", cfg.QueueBackend,
		"remote_backend", cfg.RemoteBackend,
		"queue_len", q.Len())

	return &Runtime{
		Service:  svc,
		Queue:    q,
		Driver:   d,
		Snapshot: src,
		Remote:   res.Remote,
		cleanup:  res.Cleanup,
	}, nil
}

// Close releases the durable store.
func (r *Runtime) Close() error {
	if r.cleanup == nil {
		return nil
	}
	err := r.cleanup()
	r.cleanup = nil
	if err != nil {
		return fmt.Errorf("close client runtime: %w", err)
	}
	return nil
}
