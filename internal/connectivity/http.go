package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTPProbe polls a health endpoint. The remote is reachable while the
// endpoint answers 2xx within the timeout.
type HTTPProbe struct {
	notifier

	url      string
	interval time.Duration
	client   *http.Client

	lifeMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ Probe = (*HTTPProbe)(nil)

type HTTPProbeConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

func NewHTTPProbe(cfg HTTPProbeConfig) *HTTPProbe {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &HTTPProbe{
		url:      cfg.URL,
		interval: cfg.Interval,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Start runs one check synchronously, so Reachable is accurate when it
// returns, then keeps polling in the background until Stop.
func (p *HTTPProbe) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	if p.running {
		p.lifeMu.Unlock()
		return fmt.Errorf("connectivity probe is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.lifeMu.Unlock()

	p.Check(ctx)
	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Connectivity probe started",
		"url", p.url,
		"interval", p.interval,
		"reachable", p.Reachable())
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (p *HTTPProbe) Stop(ctx context.Context) error {
	p.lifeMu.Lock()
	if !p.running {
		p.lifeMu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.lifeMu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Connectivity probe stop timed out")
		return ctx.Err()
	}
}

func (p *HTTPProbe) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check probes once and updates the state.
func (p *HTTPProbe) Check(ctx context.Context) bool {
	ok := p.ping(ctx)
	if p.set(ok) {
		slog.InfoContext(ctx, "Remote reachability changed", "reachable", ok, "url", p.url)
	}
	return ok
}

func (p *HTTPProbe) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "Health probe failed", "url", p.url, "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
