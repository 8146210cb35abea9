// Command spese manages expense records from the terminal. Changes are
// queued locally and pushed to the remote store whenever it is reachable.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spesesync/internal/app"
	"spesesync/internal/cli"
	"spesesync/internal/config"
	"spesesync/internal/connectivity"
	"spesesync/internal/log"
)

// session carries what every subcommand shares. It is filled in by the
// root command's PersistentPreRunE.
type session struct {
	cfg     *config.Config
	rt      *app.Runtime
	probe   connectivity.Probe
	logFile io.Closer

	offline bool
	envFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, s := newRootCmd()
	err := root.ExecuteContext(ctx)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:   "spese",
		Short: "Record expenses, online or offline",
		Long: `spese records expenses against a remote store.

Every change is written to a local queue first. When the remote store is
reachable the queue is drained in order; when it is not, changes wait and
are shown in listings with a pending marker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
	}
	root.PersistentFlags().BoolVar(&s.offline, "offline", false, "treat the remote store as unreachable")
	root.PersistentFlags().StringVar(&s.envFile, "env-file", ".env", "environment file to load")

	root.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
	)
	root.AddCommand(
		newAddCmd(s),
		newEditCmd(s),
		newRmCmd(s),
		newLsCmd(s),
		newSyncCmd(s),
		newStatusCmd(s),
		newQueueCmd(s),
		newEventsCmd(s),
	)
	return root, s
}

func (s *session) open(cmd *cobra.Command) error {
	if err := cli.LoadEnvFile(s.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	s.cfg = cfg

	// Logs go to stderr so command output stays clean.
	_, s.logFile = cli.SetupLogger(cfg, log.ComponentApp, cmd.ErrOrStderr())

	if cmd.Annotations["runtime"] == "none" {
		return nil
	}

	ctx := cmd.Context()
	s.probe = s.checkReachability(ctx)
	s.rt, err = app.Open(ctx, cfg, s.probe)
	if err != nil {
		return err
	}

	if cmd.Annotations["startup-sync"] != "skip" {
		s.syncAtStart(ctx)
	}
	return nil
}

// syncAtStart drains changes left queued by earlier runs when the remote
// store is reachable. A failure leaves them queued for the next run.
func (s *session) syncAtStart(ctx context.Context) {
	if !s.probe.Reachable() || s.rt.Queue.Len() == 0 {
		return
	}
	res := s.rt.Service.TriggerSync(ctx)
	if err := res.Last.Err; err != nil {
		slog.WarnContext(ctx, "Startup sync failed, changes stay queued",
			"queue_len", s.rt.Queue.Len(),
			"error", err)
		return
	}
	slog.InfoContext(ctx, "Startup sync completed", "applied", res.Last.Applied)
}

// checkReachability runs a single probe; the CLI does not poll.
func (s *session) checkReachability(ctx context.Context) connectivity.Probe {
	if s.offline {
		return connectivity.NewManual(false)
	}
	if s.cfg.ProbeURL == "" {
		return connectivity.NewManual(true)
	}
	p := connectivity.NewHTTPProbe(connectivity.HTTPProbeConfig{
		URL:     s.cfg.ProbeURL,
		Timeout: s.cfg.RemoteTimeout,
	})
	p.Check(ctx)
	return p
}

func (s *session) close() error {
	var err error
	if s.rt != nil {
		err = s.rt.Close()
		s.rt = nil
	}
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	return err
}
