package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualNotifiesOnTransitionsOnly(t *testing.T) {
	m := NewManual(false)
	var mu sync.Mutex
	var seen []bool
	unsubscribe := m.OnReachabilityChange(func(r bool) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	m.Set(false) // no change
	m.Set(true)
	m.Set(true) // no change
	m.Set(false)
	unsubscribe()
	unsubscribe() // idempotent
	m.Set(true)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != true || seen[1] != false {
		t.Fatalf("notifications = %v, want [true false]", seen)
	}
	if !m.Reachable() {
		t.Error("state not updated after unsubscribe")
	}
}

// counter counts triggers and lets the test wait for them.
type counter struct {
	n  atomic.Int32
	ch chan struct{}
}

func newCounter() *counter { return &counter{ch: make(chan struct{}, 16)} }

func (c *counter) trigger(context.Context) {
	c.n.Add(1)
	c.ch <- struct{}{}
}

func (c *counter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(time.Second):
		t.Fatal("trigger not called")
	}
}

func TestSignalTriggersOncePerTransition(t *testing.T) {
	m := NewManual(true)
	c := newCounter()
	s := NewSignal(m, c.trigger)

	s.Start(context.Background())
	c.wait(t) // initial check

	m.Set(false)
	m.Set(true)
	c.wait(t)
	m.Set(true)
	m.Set(false)
	m.Set(true)
	c.wait(t)

	s.Stop()
	m.Set(false)
	m.Set(true)

	if got := c.n.Load(); got != 3 {
		t.Fatalf("triggers = %d, want 3", got)
	}
}

func TestSignalStartOffline(t *testing.T) {
	m := NewManual(false)
	c := newCounter()
	s := NewSignal(m, c.trigger)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	if got := c.n.Load(); got != 0 {
		t.Fatalf("triggers while offline = %d", got)
	}
	m.Set(true)
	c.wait(t)
}

func TestHTTPProbe(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewHTTPProbe(HTTPProbeConfig{URL: srv.URL + "/healthz", Interval: time.Hour, Timeout: time.Second})
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(ctx)

	if err := p.Start(ctx); err == nil {
		t.Error("second start should fail")
	}
	if !p.Reachable() {
		t.Fatal("expected reachable after start")
	}

	changes := make(chan bool, 4)
	unsubscribe := p.OnReachabilityChange(func(r bool) { changes <- r })
	defer unsubscribe()

	healthy.Store(false)
	if p.Check(ctx) {
		t.Fatal("503 should be unreachable")
	}
	if r := <-changes; r {
		t.Error("expected unreachable notification")
	}

	srv.Close()
	if p.Check(ctx) {
		t.Fatal("closed server should be unreachable")
	}
	select {
	case r := <-changes:
		t.Errorf("unexpected notification %v without a transition", r)
	default:
	}
}
