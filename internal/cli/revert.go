package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
)

// NewRevertCommand creates the revert command.
func NewRevertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <bookmark-id> <history-id>",
		Short: "Restore a bookmark from a history snapshot",
		Long: `Restore the URL, title, and folder of a bookmark from one of its history
snapshots. The current state is snapshotted first, so a revert can itself
be reverted.

List snapshots with "bookmarks history <bookmark-id>".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevert(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runRevert(opts *RootOptions, bookmarkID, historyID string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.engine.Revert(cmd.Context(), bookmarkID, historyID)
	if err != nil {
		return s.out.Fail(string(engine.CodeStoreAccess), "revert failed", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(b)
	}
	fmt.Fprintf(s.out.Writer, "Reverted %s to %q [%s] (version %d)\n", b.ID, b.Title, b.FolderPath, b.Version)
	return nil
}
