package queue

import (
	"context"
	"sync"

	"spesesync/internal/core"
)

// Queue owns the in-memory pending actions. Every mutation runs a collapse
// rule and writes the result through to the durable Store before returning.
// It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	actions []core.PendingAction
	version uint64
	store   *Store
}

// Open loads the persisted queue. A nil store keeps the queue in memory only.
func Open(ctx context.Context, store *Store) *Queue {
	q := &Queue{store: store, actions: []core.PendingAction{}}
	if store != nil {
		q.actions = store.Load(ctx)
	}
	return q
}

func (q *Queue) EnqueueAdd(ctx context.Context, r core.Record) {
	q.mutate(ctx, func(cur []core.PendingAction) []core.PendingAction {
		return CollapseAdd(cur, r)
	})
}

func (q *Queue) EnqueueUpdate(ctx context.Context, r core.Record) {
	q.mutate(ctx, func(cur []core.PendingAction) []core.PendingAction {
		return CollapseUpdate(cur, r)
	})
}

func (q *Queue) EnqueueDelete(ctx context.Context, id string) {
	q.mutate(ctx, func(cur []core.PendingAction) []core.PendingAction {
		return CollapseDelete(cur, id)
	})
}

// Clear empties the queue and the durable mirror.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = []core.PendingAction{}
	q.version++
	if q.store != nil {
		q.store.Clear(ctx)
	}
}

// Snapshot returns a copy of the pending actions and the version it was
// taken at.
func (q *Queue) Snapshot() ([]core.PendingAction, uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.PendingAction, len(q.actions))
	copy(out, q.actions)
	return out, q.version
}

// Actions returns a copy of the pending actions.
func (q *Queue) Actions() []core.PendingAction {
	actions, _ := q.Snapshot()
	return actions
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Version increases on every mutation.
func (q *Queue) Version() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.version
}

// Settle records that drained, taken at version, reached the remote store.
// When nothing changed since then the queue is cleared. Otherwise only the
// drained entries still present unchanged are removed, so edits made while
// the drain was running stay queued. It reports whether the queue is empty.
func (q *Queue) Settle(ctx context.Context, drained []core.PendingAction, version uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if version == q.version {
		q.actions = []core.PendingAction{}
		q.version++
		if q.store != nil {
			q.store.Clear(ctx)
		}
		return true
	}

	done := make(map[core.PendingAction]int, len(drained))
	for _, a := range drained {
		done[a]++
	}
	kept := make([]core.PendingAction, 0, len(q.actions))
	for _, a := range q.actions {
		if done[a] > 0 {
			done[a]--
			continue
		}
		kept = append(kept, a)
	}
	q.actions = kept
	q.version++
	q.persistLocked(ctx)
	return len(q.actions) == 0
}

func (q *Queue) mutate(ctx context.Context, fn func([]core.PendingAction) []core.PendingAction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = fn(q.actions)
	q.version++
	q.persistLocked(ctx)
}

func (q *Queue) persistLocked(ctx context.Context) {
	if q.store != nil {
		q.store.Save(ctx, q.actions)
	}
}
