package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spesesync/internal/core"
	kvmemory "spesesync/internal/kv/memory"
	"spesesync/internal/remote"
	remotememory "spesesync/internal/remote/memory"
)

// flakyRemote wraps a memory store and can be switched offline.
type flakyRemote struct {
	*remotememory.Store
	down  atomic.Bool
	lists atomic.Int32
	gate  chan struct{}
}

func (f *flakyRemote) List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error) {
	f.lists.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.down.Load() {
		return remote.ListResult{}, errors.New("network unreachable")
	}
	return f.Store.List(ctx, q)
}

func seeded() *flakyRemote {
	return &flakyRemote{Store: remotememory.New(
		core.Record{ID: "1", Title: "Taxi", Date: "2025-01-02", Category: "Travel"},
		core.Record{ID: "2", Title: "Lunch", Date: "2025-01-03", Category: "Food"},
	)}
}

func TestFetchCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	rs := seeded()
	src := New(rs, nil, Config{MaxEntries: 4, TTL: time.Minute})
	q := remote.ListQuery{Page: 1, PageSize: 10}

	for i := 0; i < 3; i++ {
		if _, err := src.Fetch(ctx, q); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if n := rs.lists.Load(); n != 1 {
		t.Fatalf("remote listed %d times, want 1", n)
	}

	src.Invalidate()
	if _, err := src.Fetch(ctx, q); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := rs.lists.Load(); n != 2 {
		t.Fatalf("remote listed %d times after invalidate, want 2", n)
	}
}

func TestFetchSharesInflightCall(t *testing.T) {
	ctx := context.Background()
	rs := seeded()
	rs.gate = make(chan struct{})
	src := New(rs, nil, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = src.Fetch(ctx, remote.ListQuery{})
		}()
	}
	// Let the callers pile up on the single in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(rs.gate)
	wg.Wait()

	if n := rs.lists.Load(); n > 5 || n < 1 {
		t.Fatalf("unexpected list count %d", n)
	}
}

func TestFetchFallsBackToOfflineCopy(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	q := remote.ListQuery{Category: "Food"}

	rs := seeded()
	if _, err := New(rs, store, DefaultConfig()).Fetch(ctx, q); err != nil {
		t.Fatalf("warm fetch: %v", err)
	}

	// New process, remote down: the durable copy is served.
	rs.down.Store(true)
	src := New(rs, store, DefaultConfig())
	page, err := src.Fetch(ctx, q)
	if err != nil {
		t.Fatalf("offline fetch: %v", err)
	}
	if !page.Offline || page.Total != 1 || page.Items[0].ID != "2" {
		t.Fatalf("unexpected offline page %+v", page)
	}

	if _, err := src.Fetch(ctx, remote.ListQuery{Category: "Travel"}); err == nil {
		t.Fatal("expected error for a query never fetched online")
	}
}

func TestSpeculateRollbackAndCommit(t *testing.T) {
	ctx := context.Background()
	rs := seeded()
	src := New(rs, nil, DefaultConfig())
	q := remote.ListQuery{}
	if _, err := src.Fetch(ctx, q); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	added := core.Record{ID: "9", Title: "Cinema", Date: "2025-01-04", Category: "Fun"}
	prepend := func(rs []core.Record) []core.Record { return append([]core.Record{added}, rs...) }

	sp := src.Speculate(prepend)
	page, _ := src.Fetch(ctx, q)
	if page.Total != 3 || page.Items[0].ID != "9" {
		t.Fatalf("speculative page not visible: %+v", page)
	}

	sp.Rollback()
	page, _ = src.Fetch(ctx, q)
	if page.Total != 2 || page.Items[0].ID != "2" {
		t.Fatalf("rollback did not restore prior page: %+v", page)
	}
	if n := rs.lists.Load(); n != 1 {
		t.Fatalf("rollback should not refetch, lists = %d", n)
	}

	sp = src.Speculate(prepend)
	sp.Commit(ctx)
	sp.Rollback() // no-op once committed
	if _, err := src.Fetch(ctx, q); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := rs.lists.Load(); n != 2 {
		t.Fatalf("commit should invalidate, lists = %d", n)
	}
}

func TestCommitUpdatesOfflineCopy(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	rs := seeded()
	src := New(rs, store, DefaultConfig())

	all := remote.ListQuery{Page: 1, PageSize: 10}
	food := remote.ListQuery{Page: 1, PageSize: 10, Category: "Food"}
	for _, q := range []remote.ListQuery{all, food} {
		if _, err := src.Fetch(ctx, q); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}

	added := core.Record{ID: "9", Title: "Cinema", Date: "2025-01-04", Category: "Fun"}
	src.Speculate(func(rs []core.Record) []core.Record { return append([]core.Record{added}, rs...) }).Commit(ctx)
	src.Speculate(func(rs []core.Record) []core.Record {
		out := rs[:0]
		for _, r := range rs {
			if r.ID != "2" {
				out = append(out, r)
			}
		}
		return out
	}).Commit(ctx)

	// Remote goes away before anything refetches.
	rs.down.Store(true)
	for _, s := range []*Source{src, New(rs, store, DefaultConfig())} {
		page, err := s.Fetch(ctx, all)
		if err != nil {
			t.Fatalf("offline fetch: %v", err)
		}
		if !page.Offline || page.Total != 2 || page.Items[0].ID != "9" || page.Items[1].ID != "1" {
			t.Fatalf("offline page missed committed edits: %+v", page)
		}

		page, err = s.Fetch(ctx, food)
		if err != nil {
			t.Fatalf("offline fetch: %v", err)
		}
		if page.Total != 0 || len(page.Items) != 0 {
			t.Fatalf("food page should be empty, got %+v", page)
		}
	}
}

func TestRollbackLeavesOfflineCopy(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	rs := seeded()
	src := New(rs, store, DefaultConfig())
	q := remote.ListQuery{}
	if _, err := src.Fetch(ctx, q); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	added := core.Record{ID: "9", Title: "Cinema", Date: "2025-01-04", Category: "Fun"}
	src.Speculate(func(rs []core.Record) []core.Record { return append([]core.Record{added}, rs...) }).Rollback()

	rs.down.Store(true)
	page, err := New(rs, store, DefaultConfig()).Fetch(ctx, q)
	if err != nil {
		t.Fatalf("offline fetch: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("rolled back edit reached the offline copy: %+v", page)
	}
}
