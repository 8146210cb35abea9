package connectivity

import (
	"context"
	"log/slog"
	"sync"
)

// Signal triggers a sync once per transition to reachable, including an
// initial trigger when the remote is already reachable at Start. Triggers
// run on their own goroutine so a slow sync never blocks the probe;
// overlapping triggers are expected to be serialized by the callee.
type Signal struct {
	probe   Probe
	trigger func(ctx context.Context)

	mu          sync.Mutex
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewSignal(probe Probe, trigger func(ctx context.Context)) *Signal {
	return &Signal{probe: probe, trigger: trigger}
}

func (s *Signal) Start(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.probe.OnReachabilityChange(func(reachable bool) {
		if reachable {
			s.fire("became reachable")
		}
	})
	s.mu.Unlock()

	if s.probe.Reachable() {
		s.fire("reachable at start")
	}
}

func (s *Signal) fire(reason string) {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		slog.DebugContext(ctx, "Connectivity triggered sync", "reason", reason)
		s.trigger(ctx)
	}()
}

// Stop unsubscribes from the probe and waits for triggered syncs to return.
func (s *Signal) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.wg.Wait()
}
