package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spesesync/internal/amqp"
	"spesesync/internal/core"
)

func newSyncCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Push queued changes to the remote store",
		Args:    cobra.NoArgs,

		// Reports on its own pass.
		Annotations: map[string]string{"startup-sync": "skip"},

		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !s.probe.Reachable() {
				fmt.Fprintf(out, "Remote store unreachable, %d changes stay queued.\n", s.rt.Queue.Len())
				return nil
			}

			res := s.rt.Service.TriggerSync(cmd.Context())
			if res.Passes == 0 {
				fmt.Fprintln(out, "Nothing to sync.")
				return nil
			}
			last := res.Last
			if last.Err != nil {
				return fmt.Errorf("sync stopped at %s after %d of %d changes, %d still queued: %w",
					last.Failed, last.Applied, last.Attempted, s.rt.Queue.Len(), last.Err)
			}
			fmt.Fprintf(out, "Synced %d changes.\n", last.Applied)
			return nil
		},
	}
}

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "sync",
		Short:   "Show reachability and queue depth",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reach := "unreachable"
			if s.probe.Reachable() {
				reach = "reachable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote:  %s (%s)\nqueued:  %d\nsync:    %s\n",
				reach, s.cfg.RemoteBackend, s.rt.Queue.Len(), s.rt.Service.Status())
			return nil
		},
	}
}

func newQueueCmd(s *session) *cobra.Command {
	var clear, yes bool
	cmd := &cobra.Command{
		Use:     "queue",
		GroupID: "sync",
		Short:   "List queued changes",
		Args:    cobra.NoArgs,

		// Inspecting or discarding the queue must not drain it first.
		Annotations: map[string]string{"startup-sync": "skip"},

		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if clear {
				if !yes {
					return errors.New("clearing discards unsynced changes, pass --yes to confirm")
				}
				n := s.rt.Queue.Len()
				s.rt.Queue.Clear(cmd.Context())
				fmt.Fprintf(out, "Discarded %d queued changes.\n", n)
				return nil
			}

			actions := s.rt.Service.Pending()
			if len(actions) == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tKIND\tID\tTITLE\tAMOUNT")
			for i, a := range actions {
				title, amount := "", ""
				if a.Kind != core.ActionDelete {
					title = a.Record.Title
					amount = core.FormatCents(a.Record.AmountCents())
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, a.Kind, a.RecordID(), title, amount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "discard every queued change")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm --clear")
	return cmd
}

func newEventsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:         "events",
		GroupID:     "sync",
		Short:       "Follow sync events published by spese-agent",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"runtime": "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			ctx := cmd.Context()
			client, err := amqp.NewClient(ctx, s.cfg.AMQPURL, s.cfg.AMQPExchange, s.cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.ConsumeSyncEvents(ctx, func(m *amqp.SyncEventMessage) error {
				line := fmt.Sprintf("%s  %-8s queued=%d", m.Timestamp.Format("15:04:05"), m.Status, m.QueueLen)
				if m.Attempted > 0 {
					line += fmt.Sprintf(" applied=%d/%d", m.Applied, m.Attempted)
				}
				if m.Failed() {
					line += fmt.Sprintf(" failed=%s:%s error=%q", m.FailedKind, m.FailedRecordID, m.Error)
				}
				_, err := fmt.Fprintln(out, line)
				return err
			})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
}
