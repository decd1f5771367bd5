package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/source"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Source  string
	Profile string
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "reconcile <family> [path]",
		Aliases: []string{"sync"},
		Short:   "Stage a batch from one browser source",
		Long: `Read one browser source and stage its differences from the canonical
bookmarks of the same family as a pending_review batch.

family is firefox, chrome, or html. path is a Firefox profile directory or
places.sqlite, a Chrome Bookmarks file, or a Netscape HTML export. When
path is omitted the configured profile path for the family is used.

Canonical bookmarks are not changed; review the batch with "batch show"
and apply it with "commit".

Examples:
  marksync reconcile firefox ~/.mozilla/firefox/abcd.default-release
  marksync reconcile chrome --profile Default
  marksync reconcile html ./bookmarks.html --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runReconcile(opts, args[0], path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "batch source label (default: the family name)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "browser profile name recorded on new bookmarks")

	return cmd
}

func runReconcile(opts *ReconcileOptions, familyArg, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	family, err := ir.ParseFamily(familyArg)
	if err != nil {
		return out.Fail(string(engine.CodeInvalidInput), "invalid source family", err)
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if path == "" {
		path = s.cfg.SourcePath(family)
	}
	if path == "" {
		return out.Fail(string(engine.CodeInvalidInput), "no source path",
			fmt.Errorf("no %s path given and none configured", family))
	}

	reader, err := source.New(family, path, source.WithCopyTimeout(s.cfg.CopyTimeout))
	if err != nil {
		return out.Fail(string(engine.CodeSourceRead), "failed to open source", engine.SourceReadError(path, err))
	}
	out.VerboseLog("Reading %s source %s", family, path)

	res, err := s.engine.Sync(cmd.Context(), engine.SyncRequest{
		Reader:  reader,
		Source:  opts.Source,
		Profile: opts.Profile,
	})
	if err != nil {
		return out.Fail(string(engine.CodeStoreAccess), "reconcile failed", err)
	}

	if out.Format == "json" {
		return out.Success(res)
	}
	printReconcile(out.Writer, res)
	return nil
}

func printReconcile(w io.Writer, res engine.ReconcileResult) {
	fmt.Fprintf(w, "Batch %s (%s, %s)\n", res.Batch.ID, res.Batch.Source, res.Batch.Status)
	fmt.Fprintf(w, "  new:          %d\n", res.Counts.New)
	fmt.Fprintf(w, "  update:       %d\n", res.Counts.Update)
	fmt.Fprintf(w, "  mark_deleted: %d\n", res.Counts.MarkDeleted)
	if res.Duplicates > 0 {
		fmt.Fprintf(w, "  duplicates:   %d\n", res.Duplicates)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	if res.Counts.Total() == 0 {
		fmt.Fprintln(w, "Source is in sync.")
	}
}
