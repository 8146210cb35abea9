// Package syncer drains the pending queue against the remote store.
//
// A pass replays the queue in order, one call at a time, and stops at the
// first failure. Only a pass that applies every action settles the queue.
// Passes never overlap: a trigger that arrives while a pass is running is
// folded into a single follow-up pass.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"spesesync/internal/core"
	"spesesync/internal/queue"
	"spesesync/internal/remote"
)

// PassResult describes one drain pass.
type PassResult struct {
	Attempted int
	Applied   int
	// Failed is the action that aborted the pass, if any.
	Failed   *core.PendingAction
	Err      error
	Settled  bool
	Duration time.Duration
}

// Succeeded reports whether every action reached the remote store.
func (p PassResult) Succeeded() bool { return p.Err == nil }

// Result is what one Trigger call did.
type Result struct {
	// Deferred is set when another pass was already running; it will run
	// one more pass on this trigger's behalf.
	Deferred bool
	Passes   int
	Last     PassResult
}

// Event is delivered to listeners on every status change. Pass is set when
// Status is SyncDone.
type Event struct {
	Status   core.SyncStatus
	Pass     *PassResult
	QueueLen int
	At       time.Time
}

// Listener observes status changes. Listeners run synchronously on the
// syncing goroutine and must not call back into the Driver's Trigger.
type Listener interface {
	OnSyncEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) OnSyncEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type Driver struct {
	queue      *queue.Queue
	remote     remote.Store
	online     func() bool
	invalidate func()
	now        func() time.Time

	mu        sync.Mutex
	status    core.SyncStatus
	running   bool
	rerun     bool
	listeners []Listener
}

type Option func(*Driver)

// WithOnline sets the reachability check consulted before each pass.
// Without it the remote store is assumed reachable.
func WithOnline(fn func() bool) Option {
	return func(d *Driver) { d.online = fn }
}

// WithInvalidate sets the hook run after a fully successful pass so cached
// remote state is refetched.
func WithInvalidate(fn func()) Option {
	return func(d *Driver) { d.invalidate = fn }
}

func WithListener(l Listener) Option {
	return func(d *Driver) { d.listeners = append(d.listeners, l) }
}

func New(q *queue.Queue, rs remote.Store, opts ...Option) *Driver {
	d := &Driver{
		queue:  q,
		remote: rs,
		online: func() bool { return true },
		now:    time.Now,
		status: core.SyncIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe adds a listener after construction.
func (d *Driver) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *Driver) Status() core.SyncStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Running reports whether a pass is in progress.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Acknowledge moves a finished sync back to Idle. It does nothing in any
// other state.
func (d *Driver) Acknowledge(ctx context.Context) {
	d.mu.Lock()
	if d.status != core.SyncDone {
		d.mu.Unlock()
		return
	}
	d.status = core.SyncIdle
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()
	d.notify(ctx, listeners, core.SyncIdle, nil)
}

// Trigger runs a sync on the caller's goroutine and returns when it and any
// follow-up pass requested meanwhile are finished. Offline or with an empty
// queue it returns without touching the status or the remote store.
func (d *Driver) Trigger(ctx context.Context) Result {
	d.mu.Lock()
	if d.running {
		d.rerun = true
		d.mu.Unlock()
		slog.DebugContext(ctx, "Sync already running, follow-up pass scheduled")
		return Result{Deferred: true}
	}
	d.running = true
	d.mu.Unlock()

	var res Result
	for {
		if pr, ran := d.pass(ctx); ran {
			res.Passes++
			res.Last = pr
		}

		d.mu.Lock()
		again := d.rerun && ctx.Err() == nil
		d.rerun = false
		if !again {
			d.running = false
			d.mu.Unlock()
			return res
		}
		d.mu.Unlock()
	}
}

func (d *Driver) pass(ctx context.Context) (PassResult, bool) {
	if !d.online() {
		slog.DebugContext(ctx, "Sync skipped, remote unreachable")
		return PassResult{}, false
	}
	actions, version := d.queue.Snapshot()
	if len(actions) == 0 {
		return PassResult{}, false
	}

	d.setStatus(ctx, core.SyncSyncing, nil)
	start := d.now()
	pr := PassResult{Attempted: len(actions)}

	for i := range actions {
		a := actions[i]
		if err := remote.Apply(ctx, d.remote, a); err != nil {
			pr.Failed = &a
			pr.Err = err
			slog.WarnContext(ctx, "Sync aborted, queue kept for retry",
				"action_kind", string(a.Kind),
				"record_id", a.RecordID(),
				"applied", pr.Applied,
				"remaining", len(actions)-pr.Applied,
				"retryable", remote.IsRetryable(err),
				"error", err)
			break
		}
		pr.Applied++
	}

	if pr.Err == nil {
		pr.Settled = d.queue.Settle(ctx, actions, version)
		if d.invalidate != nil {
			d.invalidate()
		}
		slog.InfoContext(ctx, "Sync pass completed",
			"applied", pr.Applied,
			"queue_len", d.queue.Len())
	}

	pr.Duration = d.now().Sub(start)
	d.setStatus(ctx, core.SyncDone, &pr)
	return pr, true
}

func (d *Driver) setStatus(ctx context.Context, s core.SyncStatus, pr *PassResult) {
	d.mu.Lock()
	d.status = s
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()
	d.notify(ctx, listeners, s, pr)
}

func (d *Driver) notify(ctx context.Context, listeners []Listener, s core.SyncStatus, pr *PassResult) {
	ev := Event{Status: s, Pass: pr, QueueLen: d.queue.Len(), At: d.now()}
	for _, l := range listeners {
		l.OnSyncEvent(ctx, ev)
	}
}
