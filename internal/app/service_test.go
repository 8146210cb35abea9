package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"spesesync/internal/connectivity"
	"spesesync/internal/core"
	kvmemory "spesesync/internal/kv/memory"
	"spesesync/internal/merge"
	"spesesync/internal/queue"
	"spesesync/internal/remote"
	"spesesync/internal/remote/memory"
	"spesesync/internal/snapshot"
	"spesesync/internal/syncer"
)

var errDown = errors.New("connection refused")

// flakyRemote fails every call while down is set.
type flakyRemote struct {
	*memory.Store
	down atomic.Bool
}

func (f *flakyRemote) Create(ctx context.Context, r core.Record) (core.Record, error) {
	if f.down.Load() {
		return core.Record{}, errDown
	}
	return f.Store.Create(ctx, r)
}

func (f *flakyRemote) Replace(ctx context.Context, id string, r core.Record) (core.Record, error) {
	if f.down.Load() {
		return core.Record{}, errDown
	}
	return f.Store.Replace(ctx, id, r)
}

func (f *flakyRemote) Remove(ctx context.Context, id string) error {
	if f.down.Load() {
		return errDown
	}
	return f.Store.Remove(ctx, id)
}

func (f *flakyRemote) List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error) {
	if f.down.Load() {
		return remote.ListResult{}, errDown
	}
	return f.Store.List(ctx, q)
}

type fixture struct {
	svc    *Service
	remote *flakyRemote
	probe  *connectivity.Manual
	queue  *queue.Queue
}

func newFixture(t *testing.T, online, direct bool, seed ...core.Record) *fixture {
	t.Helper()
	ctx := context.Background()

	rs := &flakyRemote{Store: memory.New(seed...)}
	probe := connectivity.NewManual(online)
	kv := kvmemory.New()
	q := queue.Open(ctx, queue.NewStore(kv))
	src := snapshot.New(rs, kv, snapshot.DefaultConfig())
	d := syncer.New(q, rs, syncer.WithOnline(probe.Reachable), syncer.WithInvalidate(src.Invalidate))

	n := 0
	svc := New(q, d, src, rs,
		WithOnline(probe.Reachable),
		WithDirect(direct),
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("gen-%d", n) }),
	)
	return &fixture{svc: svc, remote: rs, probe: probe, queue: q}
}

func rec(id, title, date, category string, amount float64) core.Record {
	return core.Record{ID: id, Title: title, Amount: amount, Date: date, Category: category}
}

func ids(records []core.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddAssignsIDAndQueuesWhenOffline(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := context.Background()

	got, err := f.svc.Add(ctx, rec("", "Lunch", "2025-06-10", "Food", 9.5))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.Record.ID != "gen-1" || !got.Queued {
		t.Fatalf("receipt = %+v", got)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("queue len = %d", f.queue.Len())
	}
	if f.svc.Status() != core.SyncIdle {
		t.Errorf("status = %v", f.svc.Status())
	}
	if _, ok := f.remote.Get("gen-1"); ok {
		t.Error("offline add reached the remote store")
	}
}

func TestInvalidRecordNeverQueued(t *testing.T) {
	f := newFixture(t, false, false)
	ctx := context.Background()

	tests := []struct {
		name string
		r    core.Record
		want error
	}{
		{"zero amount", rec("a", "Lunch", "2025-06-10", "Food", 0), core.ErrInvalidAmount},
		{"future date", rec("a", "Lunch", "2025-06-20", "Food", 1), core.ErrFutureDate},
		{"no category", rec("a", "Lunch", "2025-06-10", "", 1), core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Add(ctx, tt.r); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := f.svc.Update(ctx, rec("", "Lunch", "2025-06-10", "Food", 1)); !errors.Is(err, core.ErrMissingID) {
		t.Errorf("update without id: %v", err)
	}
	if _, err := f.svc.Delete(ctx, "  "); !errors.Is(err, core.ErrMissingID) {
		t.Errorf("delete without id: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("queue len = %d, want 0", f.queue.Len())
	}
}

func TestDirectPathWhenOnline(t *testing.T) {
	f := newFixture(t, true, true, rec("1", "Rent", "2025-06-01", "Home", 700))
	ctx := context.Background()

	if _, err := f.svc.List(ctx, ListOptions{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	got, err := f.svc.Add(ctx, rec("2", "Groceries", "2025-06-05", "Food", 40))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.Queued {
		t.Fatal("online add with empty queue was queued")
	}
	if _, ok := f.remote.Get("2"); !ok {
		t.Fatal("record not created remotely")
	}

	view, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"2", "1"}; !equal(ids(view.Records), want) {
		t.Fatalf("view = %v, want %v", ids(view.Records), want)
	}
}

func TestDirectFailureRollsBackAndQueues(t *testing.T) {
	f := newFixture(t, true, true, rec("1", "Rent", "2025-06-01", "Home", 700))
	ctx := context.Background()

	if _, err := f.svc.List(ctx, ListOptions{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	f.remote.down.Store(true)

	got, err := f.svc.Update(ctx, rec("1", "Rent June", "2025-06-01", "Home", 750))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.Queued {
		t.Fatal("failed direct call was not queued")
	}

	view, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(view.Records) != 1 || view.Records[0].Title != "Rent June" {
		t.Fatalf("view = %+v", view.Records)
	}
	if view.Pending["1"] != core.ActionUpdate {
		t.Errorf("pending markers = %v", view.Pending)
	}
	if r, _ := f.remote.Get("1"); r.Title != "Rent" {
		t.Errorf("remote changed to %q", r.Title)
	}
}

func TestOfflineEditsReconcileOnSync(t *testing.T) {
	f := newFixture(t, false, true,
		rec("1", "Rent", "2025-06-01", "Home", 700),
		rec("2", "Gym", "2025-06-02", "Health", 30),
	)
	ctx := context.Background()

	if _, err := f.svc.Add(ctx, rec("3", "Coffee", "2025-06-14", "Food", 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Update(ctx, rec("1", "Rent June", "2025-06-01", "Home", 750)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Delete(ctx, "2"); err != nil {
		t.Fatal(err)
	}

	if res := f.svc.TriggerSync(ctx); res.Passes != 0 {
		t.Fatalf("offline trigger ran %d passes", res.Passes)
	}
	if f.svc.Status() != core.SyncIdle {
		t.Fatalf("offline trigger changed status to %v", f.svc.Status())
	}

	f.probe.Set(true)
	res := f.svc.TriggerSync(ctx)
	if res.Last.Err != nil || res.Last.Applied != 3 {
		t.Fatalf("sync result = %+v", res.Last)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("queue len = %d after sync", f.queue.Len())
	}
	if f.svc.Status() != core.SyncDone {
		t.Fatalf("status = %v, want done", f.svc.Status())
	}

	view, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"3", "1"}; !equal(ids(view.Records), want) {
		t.Fatalf("view = %v, want %v", ids(view.Records), want)
	}
	if len(view.Pending) != 0 {
		t.Errorf("pending markers left: %v", view.Pending)
	}

	// The next mutation acknowledges the finished sync.
	if _, err := f.svc.Add(ctx, rec("4", "Book", "2025-06-15", "Leisure", 12)); err != nil {
		t.Fatal(err)
	}
	if f.svc.Status() != core.SyncIdle {
		t.Errorf("status after new mutation = %v, want idle", f.svc.Status())
	}
}

func TestListFiltersSortsAndWindows(t *testing.T) {
	var seed []core.Record
	for i := 1; i <= 7; i++ {
		category := "Food"
		if i%2 == 0 {
			category = "Travel"
		}
		seed = append(seed, rec(fmt.Sprint(i), fmt.Sprintf("Item %d", i), fmt.Sprintf("2025-06-%02d", i), category, float64(i)))
	}
	f := newFixture(t, true, false, seed...)
	ctx := context.Background()

	view, err := f.svc.List(ctx, ListOptions{Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(view.Records) != DefaultPageSize || !view.HasMore || view.Total != 7 {
		t.Fatalf("first window: %d records, more=%v, total=%d", len(view.Records), view.HasMore, view.Total)
	}
	if view.Records[0].ID != "7" {
		t.Errorf("default sort should be newest first, got %s", view.Records[0].ID)
	}

	view, _ = f.svc.List(ctx, ListOptions{Page: 2})
	if len(view.Records) != 7 || view.HasMore {
		t.Fatalf("second window: %d records, more=%v", len(view.Records), view.HasMore)
	}

	view, _ = f.svc.List(ctx, ListOptions{Category: "Travel", Sort: merge.SortAmountAsc})
	if want := []string{"2", "4", "6"}; !equal(ids(view.Records), want) {
		t.Fatalf("travel by amount = %v, want %v", ids(view.Records), want)
	}
	if view.Summary.TotalCents != 1200 || view.Summary.Count != 3 {
		t.Errorf("summary = %+v", view.Summary)
	}
}

func TestListWithoutSnapshotShowsQueue(t *testing.T) {
	f := newFixture(t, false, false)
	f.remote.down.Store(true)
	ctx := context.Background()

	if _, err := f.svc.Add(ctx, rec("a", "Taxi", "2025-06-10", "Travel", 15)); err != nil {
		t.Fatal(err)
	}
	view, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !view.Offline || len(view.Records) != 1 || view.Pending["a"] != core.ActionAdd {
		t.Fatalf("view = %+v", view)
	}
}

func TestLookupSeesPendingEdits(t *testing.T) {
	f := newFixture(t, false, false, rec("1", "Rent", "2025-06-01", "Home", 700))
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, rec("1", "Rent June", "2025-06-01", "Home", 750)); err != nil {
		t.Fatal(err)
	}
	got, ok, err := f.svc.Lookup(ctx, "1")
	if err != nil || !ok || got.Title != "Rent June" {
		t.Fatalf("Lookup = %+v, %v, %v", got, ok, err)
	}
	if _, ok, _ := f.svc.Lookup(ctx, "nope"); ok {
		t.Error("found a record that does not exist")
	}
}
