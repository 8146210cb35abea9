package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"spesesync/internal/app"
	"spesesync/internal/core"
	"spesesync/internal/merge"
)

type recordFlags struct {
	id       string
	title    string
	amount   string
	date     string
	category string
	notes    string
}

func (f *recordFlags) register(cmd *cobra.Command, withID bool) {
	if withID {
		cmd.Flags().StringVar(&f.id, "id", "", "record id (generated when empty)")
	}
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "description, at least 3 characters")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount, e.g. 12.50 or 12,50")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category name")
	cmd.Flags().StringVarP(&f.notes, "notes", "n", "", "optional notes")
}

// apply overwrites the fields of r whose flags were set.
func (f *recordFlags) apply(cmd *cobra.Command, r *core.Record) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		r.Title = strings.TrimSpace(f.title)
	}
	if changed("amount") {
		amount, err := core.ParseAmount(f.amount)
		if err != nil {
			return err
		}
		r.Amount = amount
	}
	if changed("date") {
		r.Date = strings.TrimSpace(f.date)
	}
	if changed("category") {
		r.Category = strings.TrimSpace(f.category)
	}
	if changed("notes") {
		r.Notes = strings.TrimSpace(f.notes)
	}
	return nil
}

func newAddCmd(s *session) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:     "add",
		GroupID: "records",
		Short:   "Add an expense",
		Example: `  spese add -t "Train ticket" -a 12.50 -c Travel
  spese add -t Groceries -a 43,20 -c Food -d 2025-06-01 -n "weekly shop"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := core.Record{ID: f.id, Date: time.Now().Format(core.DateLayout)}
			if err := f.apply(cmd, &r); err != nil {
				return err
			}
			receipt, err := s.rt.Service.Add(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", receipt.Record.ID, placement(receipt))
			return nil
		},
	}
	f.register(cmd, true)
	for _, name := range []string{"title", "amount", "category"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newEditCmd(s *session) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:     "edit <id>",
		GroupID: "records",
		Short:   "Change fields of an expense",
		Example: `  spese edit 3f2c... -a 14.00`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, ok, err := s.rt.Service.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no expense with id %q", args[0])
			}
			if err := f.apply(cmd, &r); err != nil {
				return err
			}
			receipt, err := s.rt.Service.Update(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", r.ID, placement(receipt))
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newRmCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		GroupID: "records",
		Short:   "Delete expenses",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				receipt, err := s.rt.Service.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", id, placement(receipt))
			}
			return nil
		},
	}
}

func newLsCmd(s *session) *cobra.Command {
	var (
		category string
		sortKey  string
		page     int
	)
	cmd := &cobra.Command{
		Use:     "ls",
		GroupID: "records",
		Short:   "List expenses with unsynced changes applied",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := merge.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			view, err := s.rt.Service.List(cmd.Context(), app.ListOptions{
				Category: category,
				Sort:     key,
				Page:     page,
			})
			if err != nil {
				return err
			}
			printView(cmd, view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", merge.AllCategories, "only show this category")
	cmd.Flags().StringVarP(&sortKey, "sort", "s", string(merge.SortDateDesc), "date_desc, date_asc, amount_desc or amount_asc")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "number of pages to show")
	return cmd
}

func printView(cmd *cobra.Command, view app.ListView) {
	out := cmd.OutOrStdout()
	if view.Offline {
		fmt.Fprintln(out, "Remote store unreachable, showing the last known list.")
	}
	if len(view.Records) == 0 {
		fmt.Fprintln(out, "No expenses.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDATE\tTITLE\tCATEGORY\tAMOUNT")
	for _, r := range view.Records {
		marker := ""
		if view.Pending.Is(r.ID) {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, r.ID, r.Date, r.Title, r.Category, core.FormatCents(r.AmountCents()))
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d of %d shown, total %s", len(view.Records), view.Total, core.FormatCents(view.Summary.TotalCents))
	if view.HasMore {
		fmt.Fprint(out, ", more with --page")
	}
	fmt.Fprintln(out)
	if len(view.Pending) > 0 {
		fmt.Fprintln(out, "* not yet synced")
	}
}

func placement(r app.Receipt) string {
	if r.Queued {
		return "(queued)"
	}
	return "(synced)"
}
