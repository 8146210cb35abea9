package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"spesesync/internal/core"
	"spesesync/internal/kv"
)

// StorageKey is the durable key holding the serialized queue.
const StorageKey = "pending_offline_actions"

// Store mirrors the queue into a kv.Store. Reads fail soft and writes are
// best effort: errors are logged, never returned.
type Store struct {
	kv  kv.Store
	key string
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s, key: StorageKey}
}

// Load returns the persisted queue, or an empty one on a missing key,
// malformed payload or storage fault.
func (s *Store) Load(ctx context.Context) []core.PendingAction {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			slog.WarnContext(ctx, "Failed to read pending queue, starting empty", "error", err)
		}
		return []core.PendingAction{}
	}

	var actions []core.PendingAction
	if err := json.Unmarshal(data, &actions); err != nil {
		slog.WarnContext(ctx, "Discarding malformed pending queue", "error", err, "bytes", len(data))
		return []core.PendingAction{}
	}
	if actions == nil {
		actions = []core.PendingAction{}
	}
	return actions
}

// Save persists the full queue.
func (s *Store) Save(ctx context.Context, actions []core.PendingAction) {
	if actions == nil {
		actions = []core.PendingAction{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode pending queue", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		slog.WarnContext(ctx, "Failed to persist pending queue", "error", err, "queue_len", len(actions))
	}
}

// Clear removes the persisted queue.
func (s *Store) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		slog.WarnContext(ctx, "Failed to clear persisted queue", "error", err)
	}
}
