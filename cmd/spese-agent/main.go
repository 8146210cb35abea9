// Command spese-agent keeps the offline queue moving: it polls the remote
// store's health endpoint and drains the queue each time the store becomes
// reachable. Sync activity is exported on /metrics and, when AMQP_URL is
// set, published to RabbitMQ.
//
// The agent owns its queue store. Point the spese CLI at a different
// QUEUE_DB_PATH, or stop the agent, before using the CLI directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spesesync/internal/amqp"
	"spesesync/internal/app"
	"spesesync/internal/cache"
	"spesesync/internal/cli"
	"spesesync/internal/config"
	"spesesync/internal/connectivity"
	"spesesync/internal/log"
	"spesesync/internal/metrics"
	"spesesync/internal/syncer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger, logFile := cli.SetupLogger(cfg, "agent", nil)
	defer logFile.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("Agent stopped with error", "error", err)
		logFile.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	startCtx := context.Background()

	var probe connectivity.Probe
	var httpProbe *connectivity.HTTPProbe
	if cfg.ProbeURL != "" {
		httpProbe = connectivity.NewHTTPProbe(connectivity.HTTPProbeConfig{
			URL:      cfg.ProbeURL,
			Interval: cfg.ProbeInterval,
			Timeout:  cfg.RemoteTimeout,
		})
		probe = httpProbe
	} else {
		logger.Warn("PROBE_URL is empty, remote store assumed reachable")
		probe = connectivity.NewManual(true)
	}

	syncMetrics := metrics.NewSyncMetrics()
	listeners := []syncer.Listener{syncMetrics, logListener(logger.WithComponent(log.ComponentSync))}

	// The runtime and the broker connection are independent; open both at
	// once so AMQP connect retries do not delay startup. gctx is cancelled when
	// Wait returns, so only the connect uses it.
	var (
		rt         *app.Runtime
		amqpClient *amqp.Client
	)
	g, gctx := errgroup.WithContext(startCtx)
	g.Go(func() error {
		var err error
		if rt, err = app.Open(startCtx, cfg, probe, listeners...); err != nil {
			return fmt.Errorf("open client runtime: %w", err)
		}
		return nil
	})
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			client, err := amqp.NewClient(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				logger.Warn("AMQP unavailable, continuing without sync events", "error", err)
				return nil
			}
			amqpClient = client
			return nil
		})
	}
	err := g.Wait()
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	if err != nil {
		return err
	}
	defer rt.Close()

	var publisher *amqp.Publisher
	if amqpClient != nil {
		publisher = amqp.NewPublisher(amqpClient, 128)
		rt.Driver.Subscribe(publisher)
		logger.Info("Publishing sync events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}
	syncMetrics.ObserveQueue(rt.Queue.Len())

	caches := cache.NewManager()
	caches.Register(rt.Snapshot.Cache())

	reconnect := connectivity.NewSignal(probe, func(ctx context.Context) {
		rt.Service.TriggerSync(ctx)
	})
	srv := newHTTPServer(cfg.AgentAddr, newAPI(rt, probe, syncMetrics.Handler()))

	ctx, done := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Agent HTTP shutdown error", "error", err)
		}
		reconnect.Stop()
		if httpProbe != nil {
			if err := httpProbe.Stop(ctx); err != nil {
				logger.Warn("Probe stop error", "error", err)
			}
		}
		caches.Stop()
		if publisher != nil {
			publisher.Stop()
		}
	})

	if publisher != nil {
		publisher.Start(ctx)
	}
	if httpProbe != nil {
		if err := httpProbe.Start(ctx); err != nil {
			return err
		}
	}
	caches.StartCleanup(time.Minute)
	reconnect.Start(ctx)

	logger.Info("Agent listening", "addr", cfg.AgentAddr, "queue_len", rt.Queue.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("agent http server: %w", err)
	}
	cli.WaitForShutdown(ctx, done)
	return nil
}

// logListener reports finished passes at Info.
func logListener(logger *log.Logger) syncer.Listener {
	return syncer.ListenerFunc(func(ctx context.Context, ev syncer.Event) {
		if ev.Pass == nil {
			return
		}
		fields := log.NewFields().WithOperation(log.OpSync).WithSync(ev.Status, ev.QueueLen)
		fields[log.FieldApplied] = ev.Pass.Applied
		fields[log.FieldDuration] = ev.Pass.Duration.Milliseconds()
		if ev.Pass.Err != nil {
			if ev.Pass.Failed != nil {
				fields = fields.WithAction(*ev.Pass.Failed)
			}
			logger.WarnContext(ctx, "Sync pass failed", fields.WithError(ev.Pass.Err).ToSlice()...)
			return
		}
		logger.InfoContext(ctx, "Sync pass finished", fields.ToSlice()...)
	})
}
