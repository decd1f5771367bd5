package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

// NewBatchCommand creates the batch command group.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect staged batches",
	}
	cmd.AddCommand(newBatchListCommand(rootOpts))
	cmd.AddCommand(newBatchShowCommand(rootOpts))
	return cmd
}

func newBatchListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		Long: `List batches with per-type counts of their pending changes.

Examples:
  marksync batch list
  marksync batch list --status pending_review --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchList(rootOpts, ir.BatchStatus(status), cmd)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending_review|committed|rejected)")
	return cmd
}

func runBatchList(opts *RootOptions, status ir.BatchStatus, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	batches, err := s.engine.ListBatches(cmd.Context(), status)
	if err != nil {
		return s.out.Fail(string(engine.CodeStoreAccess), "failed to list batches", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(batches)
	}
	if len(batches) == 0 {
		fmt.Fprintln(s.out.Writer, "No batches.")
		return nil
	}

	tw := tabwriter.NewWriter(s.out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tSTATUS\tCREATED\tNEW\tUPDATE\tDELETE")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			b.ID, b.Source, b.Status, b.CreatedAt.Format(time.RFC3339),
			b.Counts.New, b.Counts.Update, b.Counts.MarkDeleted)
	}
	return tw.Flush()
}

func newBatchShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch and its pending changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchShow(rootOpts, args[0], cmd)
		},
	}
}

func runBatchShow(opts *RootOptions, batchID string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := s.engine.GetBatch(cmd.Context(), batchID)
	if err != nil {
		return s.out.Fail(string(engine.CodeStoreAccess), "failed to get batch", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(view)
	}
	printBatch(s.out.Writer, view)
	return nil
}

func printBatch(w io.Writer, view engine.BatchView) {
	fmt.Fprintf(w, "Batch %s\n", view.ID)
	fmt.Fprintf(w, "  source:  %s (%s)\n", view.Source, view.Family)
	if view.Profile != "" {
		fmt.Fprintf(w, "  profile: %s\n", view.Profile)
	}
	fmt.Fprintf(w, "  status:  %s\n", view.Status)
	fmt.Fprintf(w, "  created: %s\n", view.CreatedAt.Format(time.RFC3339))
	if view.CompletedAt != nil {
		fmt.Fprintf(w, "  closed:  %s\n", view.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  pending: %d new, %d update, %d mark_deleted\n",
		view.Counts.New, view.Counts.Update, view.Counts.MarkDeleted)

	if len(view.Changes) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, c := range view.Changes {
		fmt.Fprintf(w, "%s  %s\n", c.ID, describeChange(c))
	}
}

// describeChange renders one change on a single line.
func describeChange(c ir.Change) string {
	switch p := c.Payload.(type) {
	case ir.NewPayload:
		return fmt.Sprintf("+ %s %q [%s]", p.Record.URL, p.Record.Title, p.Record.Folder)
	case ir.UpdatePayload:
		return fmt.Sprintf("~ %s %q [%s] -> %q [%s]",
			p.New.URL, p.Old.Title, p.Old.Folder, p.New.Title, p.New.Folder)
	case ir.MarkDeletedPayload:
		return fmt.Sprintf("- %s %q [%s]", p.URL, p.Title, p.Folder)
	default:
		return string(c.Type())
	}
}
