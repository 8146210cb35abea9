// Package app is the facade the user-facing layers talk to. Every mutation
// goes through the offline queue unless the remote store is reachable and
// nothing is pending, in which case it is sent directly with an optimistic
// cache edit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"spesesync/internal/core"
	"spesesync/internal/merge"
	"spesesync/internal/queue"
	"spesesync/internal/remote"
	"spesesync/internal/snapshot"
	"spesesync/internal/syncer"
)

const DefaultPageSize = 5

// Service orchestrates the queue, the cached remote snapshot and the sync
// driver.
type Service struct {
	queue    *queue.Queue
	driver   *syncer.Driver
	source   *snapshot.Source
	remote   remote.Store
	online   func() bool
	newID    func() string
	now      func() time.Time
	pageSize int
	direct   bool
}

type Option func(*Service)

// WithOnline sets the reachability check used to pick the direct path.
func WithOnline(fn func() bool) Option {
	return func(s *Service) { s.online = fn }
}

// WithDirect enables sending mutations straight to the remote store when
// online and nothing is queued.
func WithDirect(enabled bool) Option {
	return func(s *Service) { s.direct = enabled }
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func New(q *queue.Queue, d *syncer.Driver, src *snapshot.Source, rs remote.Store, opts ...Option) *Service {
	s := &Service{
		queue:    q,
		driver:   d,
		source:   src,
		remote:   rs,
		online:   func() bool { return false },
		newID:    uuid.NewString,
		now:      time.Now,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receipt reports where a mutation went.
type Receipt struct {
	Record core.Record
	Queued bool
}

// Add validates r, assigning an id when it has none, and records it.
func (s *Service) Add(ctx context.Context, r core.Record) (Receipt, error) {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = s.newID()
	}
	if err := r.ValidateAt(s.now()); err != nil {
		return Receipt{}, fmt.Errorf("add record: %w", err)
	}

	queued := s.apply(ctx, core.AddAction(r), func(items []core.Record) []core.Record {
		return append([]core.Record{r}, items...)
	})
	return Receipt{Record: r, Queued: queued}, nil
}

// Update validates r and replaces the record with the same id.
func (s *Service) Update(ctx context.Context, r core.Record) (Receipt, error) {
	if strings.TrimSpace(r.ID) == "" {
		return Receipt{}, fmt.Errorf("update record: %w", core.ErrMissingID)
	}
	if err := r.ValidateAt(s.now()); err != nil {
		return Receipt{}, fmt.Errorf("update record: %w", err)
	}

	queued := s.apply(ctx, core.UpdateAction(r), func(items []core.Record) []core.Record {
		for i := range items {
			if items[i].ID == r.ID {
				items[i] = r
			}
		}
		return items
	})
	return Receipt{Record: r, Queued: queued}, nil
}

// Delete removes the record with id.
func (s *Service) Delete(ctx context.Context, id string) (Receipt, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Receipt{}, fmt.Errorf("delete record: %w", core.ErrMissingID)
	}

	queued := s.apply(ctx, core.DeleteAction(id), func(items []core.Record) []core.Record {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
	return Receipt{Record: core.Record{ID: id}, Queued: queued}, nil
}

// apply sends a directly when allowed and falls back to the queue otherwise.
// It reports whether a ended up queued.
func (s *Service) apply(ctx context.Context, a core.PendingAction, change func([]core.Record) []core.Record) bool {
	defer s.driver.Acknowledge(ctx)

	if s.canGoDirect() {
		sp := s.source.Speculate(change)
		err := remote.Apply(ctx, s.remote, a)
		if err == nil || (a.Kind == core.ActionDelete && errors.Is(err, remote.ErrNotFound)) {
			sp.Commit(ctx)
			slog.DebugContext(ctx, "Mutation sent directly", "action_kind", string(a.Kind), "record_id", a.RecordID())
			return false
		}
		sp.Rollback()
		slog.WarnContext(ctx, "Direct remote call failed, queueing mutation",
			"action_kind", string(a.Kind),
			"record_id", a.RecordID(),
			"error", err)
	}

	s.enqueue(ctx, a)
	return true
}

func (s *Service) canGoDirect() bool {
	return s.direct && s.remote != nil && s.source != nil && s.online() && s.queue.Len() == 0
}

func (s *Service) enqueue(ctx context.Context, a core.PendingAction) {
	switch a.Kind {
	case core.ActionAdd:
		s.queue.EnqueueAdd(ctx, a.Record)
	case core.ActionUpdate:
		s.queue.EnqueueUpdate(ctx, a.Record)
	case core.ActionDelete:
		s.queue.EnqueueDelete(ctx, a.ID)
	}
}

// Status is the current sync status.
func (s *Service) Status() core.SyncStatus {
	return s.driver.Status()
}

// TriggerSync drains the queue if the remote store is reachable.
func (s *Service) TriggerSync(ctx context.Context) syncer.Result {
	return s.driver.Trigger(ctx)
}

// Pending returns the queued actions in order.
func (s *Service) Pending() []core.PendingAction {
	return s.queue.Actions()
}

// ListOptions selects what List shows.
type ListOptions struct {
	Category string
	Sort     merge.SortKey
	// Page is the number of windows shown, starting at 1.
	Page int
}

// ListView is the merged list ready for display.
type ListView struct {
	Records []core.Record
	HasMore bool
	// Total counts every record matching the filter, not just the window.
	Total   int
	Pending merge.Pending
	Summary core.Summary
	// Offline is set when the snapshot came from the durable copy or could
	// not be fetched at all.
	Offline bool
}

// List returns the remote snapshot with pending mutations folded in,
// filtered, sorted and cut to the requested window.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListView, error) {
	if err := ctx.Err(); err != nil {
		return ListView{}, err
	}
	sortKey := opts.Sort
	if sortKey == "" {
		sortKey = merge.SortDateDesc
	}
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = merge.AllCategories
	}

	var (
		snap    []core.Record
		offline bool
	)
	page, err := s.source.Fetch(ctx, remote.ListQuery{Page: 1, Category: category})
	switch {
	case err != nil:
		slog.WarnContext(ctx, "Snapshot unavailable, showing pending records only", "error", err)
		offline = true
	default:
		snap = page.Items
		offline = page.Offline
	}

	actions := s.queue.Actions()
	merged := merge.View(merge.Sort(snap, sortKey), actions)
	merged = merge.FilterByCategory(merged, category)
	win := merge.Slice(merged, opts.Page, s.pageSize)

	return ListView{
		Records: win.Records,
		HasMore: win.HasMore,
		Total:   len(merged),
		Pending: merge.PendingMarkers(actions),
		Summary: core.Summarize(merged),
		Offline: offline,
	}, nil
}

// Lookup finds id in the merged view.
func (s *Service) Lookup(ctx context.Context, id string) (core.Record, bool, error) {
	view, err := s.List(ctx, ListOptions{Page: math.MaxInt32 / max(s.pageSize, 1)})
	if err != nil {
		return core.Record{}, false, err
	}
	for _, r := range view.Records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return core.Record{}, false, nil
}
