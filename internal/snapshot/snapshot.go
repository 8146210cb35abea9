// Package snapshot caches pages of the remote record list. Fresh pages are
// kept in an LRU; the last page fetched for each query is also written to
// the durable store so the list can still be shown while offline.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"spesesync/internal/cache"
	"spesesync/internal/core"
	"spesesync/internal/kv"
	"spesesync/internal/remote"
)

// StorageKey holds the durable offline copy.
const StorageKey = "expenses_cache"

// Page is one fetched list page.
type Page struct {
	remote.ListResult
	// Offline is set when the page came from the durable copy because the
	// remote store could not be reached.
	Offline bool `json:"-"`
}

type Config struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultConfig() Config {
	return Config{MaxEntries: 64, TTL: 30 * time.Second}
}

// Source serves list pages from cache, the remote store, or the offline
// copy, in that order.
type Source struct {
	remote remote.Store
	kv     kv.Store
	pages  *cache.LRUCache[remote.ListResult]
	group  singleflight.Group

	mu      sync.Mutex
	offline map[string]remote.ListResult
	loaded  bool
}

// New returns a Source. store may be nil, which disables the offline copy.
func New(rs remote.Store, store kv.Store, cfg Config) *Source {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Source{
		remote: rs,
		kv:     store,
		pages:  cache.NewLRUCache[remote.ListResult](cfg.MaxEntries, cfg.TTL),
	}
}

// Cache exposes the page cache so it can be registered with a cache.Manager.
func (s *Source) Cache() *cache.LRUCache[remote.ListResult] {
	return s.pages
}

// Fetch returns the page for q. Concurrent fetches of the same query share
// one remote call. When the remote call fails and an offline copy exists it
// is returned with Offline set and a nil error.
func (s *Source) Fetch(ctx context.Context, q remote.ListQuery) (Page, error) {
	key := queryKey(q)
	if res, ok := s.pages.Get(key); ok {
		return Page{ListResult: res}, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		res, err := s.remote.List(ctx, q)
		if err != nil {
			return nil, err
		}
		s.pages.Set(key, res)
		s.remember(ctx, key, res)
		return res, nil
	})
	if err == nil {
		return Page{ListResult: v.(remote.ListResult)}, nil
	}

	if res, ok := s.recall(ctx, key); ok {
		slog.WarnContext(ctx, "Remote list unavailable, serving offline copy",
			"query", key, "error", err)
		return Page{ListResult: res, Offline: true}, nil
	}
	return Page{}, fmt.Errorf("fetch snapshot: %w", err)
}

// Invalidate drops every cached page so the next Fetch goes to the remote
// store. The offline copy is kept.
func (s *Source) Invalidate() {
	s.pages.Clear()
}

// Speculation is a cache edit applied ahead of remote confirmation. It holds
// the pages as they were before the edit.
type Speculation struct {
	src    *Source
	change func([]core.Record) []core.Record
	prior  map[string]remote.ListResult
	done   bool
}

// Speculate applies change to every cached page and returns the pending
// edit. The caller must either Commit or Rollback it.
func (s *Source) Speculate(change func([]core.Record) []core.Record) *Speculation {
	sp := &Speculation{src: s, change: change, prior: make(map[string]remote.ListResult)}
	for _, key := range s.pages.Keys() {
		res, ok := s.pages.Get(key)
		if !ok {
			continue
		}
		sp.prior[key] = res
		s.pages.Set(key, applyChange(key, res, change))
	}
	return sp
}

// Commit accepts the edit. Cached pages are invalidated so the next read
// reflects server truth, and the offline copy gets the edit so it does not
// go stale until the next successful fetch.
func (sp *Speculation) Commit(ctx context.Context) {
	if sp.done {
		return
	}
	sp.done = true
	sp.src.Invalidate()
	sp.src.rewriteOffline(ctx, sp.change)
}

// Rollback restores the pages captured before the edit.
func (sp *Speculation) Rollback() {
	if sp.done {
		return
	}
	sp.done = true
	for key, res := range sp.prior {
		sp.src.pages.Set(key, res)
	}
}

// applyChange runs change on a copy of res. Records the change introduces
// into a page filtered by another category are dropped.
func applyChange(key string, res remote.ListResult, change func([]core.Record) []core.Record) remote.ListResult {
	before := make(map[string]bool, len(res.Items))
	for _, it := range res.Items {
		before[it.ID] = true
	}
	category := keyCategory(key)

	changed := change(append([]core.Record(nil), res.Items...))
	items := make([]core.Record, 0, len(changed))
	for _, it := range changed {
		if category != "All" && !before[it.ID] && it.Category != category {
			continue
		}
		items = append(items, it)
	}
	return remote.ListResult{Items: items, Total: res.Total + len(items) - len(res.Items)}
}

func (s *Source) rewriteOffline(ctx context.Context, change func([]core.Record) []core.Record) {
	if s.kv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	if len(s.offline) == 0 {
		return
	}
	for key, res := range s.offline {
		s.offline[key] = applyChange(key, res, change)
	}
	s.persistLocked(ctx)
}

func (s *Source) remember(ctx context.Context, key string, res remote.ListResult) {
	if s.kv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	s.offline[key] = res
	s.persistLocked(ctx)
}

func (s *Source) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.offline)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode offline snapshot", "error", err)
		return
	}
	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		slog.WarnContext(ctx, "Failed to persist offline snapshot", "error", err)
	}
}

func (s *Source) recall(ctx context.Context, key string) (remote.ListResult, bool) {
	if s.kv == nil {
		return remote.ListResult{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	res, ok := s.offline[key]
	return res, ok
}

func (s *Source) loadLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	s.offline = make(map[string]remote.ListResult)

	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			slog.WarnContext(ctx, "Failed to read offline snapshot", "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.offline); err != nil {
		slog.WarnContext(ctx, "Discarding malformed offline snapshot", "error", err)
		s.offline = make(map[string]remote.ListResult)
	}
}

func keyCategory(key string) string {
	_, category, _ := strings.Cut(key, "&category=")
	return category
}

func queryKey(q remote.ListQuery) string {
	category := q.Category
	if category == "" {
		category = "All"
	}
	return fmt.Sprintf("page=%d&size=%d&category=%s", q.Page, q.PageSize, category)
}
