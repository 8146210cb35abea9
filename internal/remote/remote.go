// Package remote defines the Remote Store port: the server-side record
// collection the sync driver drains the pending queue against.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"

	"spesesync/internal/core"
	"spesesync/internal/merge"
)

// ErrNotFound is returned when the record does not exist remotely.
var ErrNotFound = errors.New("remote: record not found")

// Store is the remote record collection. Every operation must be safe to
// repeat: re-creating the same id, re-replacing with the same payload and
// re-removing an absent id all succeed.
type Store interface {
	Create(ctx context.Context, r core.Record) (core.Record, error)
	Replace(ctx context.Context, id string, r core.Record) (core.Record, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// ListQuery selects one page of records. Page starts at 1. PageSize <= 0
// returns every matching record. An empty Category or "All" disables the
// filter.
type ListQuery struct {
	Page     int
	PageSize int
	Category string
}

type ListResult struct {
	Items []core.Record `json:"items"`
	Total int           `json:"total"`
}

// StatusError is a non-success response from the remote store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("remote: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("remote: unexpected status %d: %s", e.Code, body)
}

// IsRetryable reports whether err is transient: network faults, timeouts,
// throttling and server errors. Client errors such as a rejected payload
// will fail the same way on the next attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return !errors.Is(err, context.Canceled)
}

// Apply sends one pending action to s.
func Apply(ctx context.Context, s Store, a core.PendingAction) error {
	switch a.Kind {
	case core.ActionAdd:
		_, err := s.Create(ctx, a.Record)
		return err
	case core.ActionUpdate:
		_, err := s.Replace(ctx, a.Record.ID, a.Record)
		return err
	case core.ActionDelete:
		return s.Remove(ctx, a.ID)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// Paginate applies q to an unordered record set the way the REST server
// does: category filter, newest date first with id as tie-breaker, then the
// requested page.
func Paginate(records []core.Record, q ListQuery) ListResult {
	filtered := slices.Clone(merge.FilterByCategory(records, q.Category))
	slices.SortStableFunc(filtered, func(a, b core.Record) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(filtered)
	if q.PageSize <= 0 {
		return ListResult{Items: filtered, Total: total}
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * q.PageSize
	if start >= total {
		return ListResult{Items: []core.Record{}, Total: total}
	}
	end := min(start+q.PageSize, total)
	return ListResult{Items: filtered[start:end], Total: total}
}
