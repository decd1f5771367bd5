package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
)

// CommitOptions holds flags for the commit command.
type CommitOptions struct {
	*RootOptions
	ChangeIDs []string
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit <batch-id>",
		Short: "Apply a pending batch",
		Long: `Apply the pending changes of a batch to the canonical store.

Without --change every pending change is applied and the batch becomes
committed. With --change only the named changes are applied; the batch
stays pending_review until no change remains. Changes made stale by
earlier commits are skipped and logged with their URL; a new bookmark
already added by another batch keeps that batch's title and folder, so
run reconcile again to stage the difference.

Examples:
  marksync commit 0192f0c4-...
  marksync commit 0192f0c4-... --change 0192f0c5-... --change 0192f0c6-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			if cmd.Flags().Changed("change") {
				ids = opts.ChangeIDs
			}
			return runCommit(opts.RootOptions, args[0], ids, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.ChangeIDs, "change", nil, "change id to apply (repeatable; default all)")

	return cmd
}

func runCommit(opts *RootOptions, batchID string, changeIDs []string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.engine.Commit(cmd.Context(), batchID, changeIDs)
	if err != nil {
		return s.out.Fail(string(engine.CodeStoreAccess), "commit failed", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(res)
	}
	fmt.Fprintf(s.out.Writer, "Batch %s: applied %d, skipped %d, remaining %d (%s)\n",
		res.BatchID, res.Applied, res.Skipped, res.Remaining, res.Status)
	return nil
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <batch-id>",
		Short: "Close a pending batch without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReject(rootOpts, args[0], cmd)
		},
	}
}

func runReject(opts *RootOptions, batchID string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	batch, err := s.engine.Reject(cmd.Context(), batchID)
	if err != nil {
		return s.out.Fail(string(engine.CodeStoreAccess), "reject failed", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(batch)
	}
	fmt.Fprintf(s.out.Writer, "Batch %s rejected.\n", batch.ID)
	return nil
}
