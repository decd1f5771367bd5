package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var familyArg string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count canonical bookmarks and pending batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			var family ir.SourceFamily
			if familyArg != "" {
				f, err := ir.ParseFamily(familyArg)
				if err != nil {
					return out.Fail(string(engine.CodeInvalidInput), "invalid source family", err)
				}
				family = f
			}

			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.engine.Stats(cmd.Context(), family)
			if err != nil {
				return out.Fail(string(engine.CodeStoreAccess), "failed to read stats", err)
			}
			if out.Format == "json" {
				return out.Success(stats)
			}
			fmt.Fprintf(out.Writer, "Bookmarks:       %d\n", stats.Bookmarks)
			fmt.Fprintf(out.Writer, "Pending batches: %d\n", stats.PendingBatches)
			return nil
		},
	}
	cmd.Flags().StringVar(&familyArg, "family", "", "count one source family only")
	return cmd
}
