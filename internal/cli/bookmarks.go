package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

// NewBookmarksCommand creates the bookmarks command group.
func NewBookmarksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookmarks",
		Aliases: []string{"bm"},
		Short:   "Query canonical bookmarks",
	}
	cmd.AddCommand(newBookmarksListCommand(rootOpts))
	cmd.AddCommand(newBookmarksShowCommand(rootOpts))
	cmd.AddCommand(newBookmarksHistoryCommand(rootOpts))
	return cmd
}

// BookmarksListOptions holds flags for bookmarks list.
type BookmarksListOptions struct {
	*RootOptions
	Query  string
	Family string
	Limit  int
}

func newBookmarksListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookmarksListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List canonical bookmarks",
		Long: `List canonical bookmarks ordered by family and URL.

Examples:
  marksync bookmarks list --family firefox
  marksync bookmarks list -q golang --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookmarksList(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "case-insensitive substring of title or URL")
	cmd.Flags().StringVar(&opts.Family, "family", "", "restrict to one source family")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (0 for all)")

	return cmd
}

func runBookmarksList(opts *BookmarksListOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var family ir.SourceFamily
	if opts.Family != "" {
		f, err := ir.ParseFamily(opts.Family)
		if err != nil {
			return out.Fail(string(engine.CodeInvalidInput), "invalid source family", err)
		}
		family = f
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	bookmarks, err := s.engine.ListBookmarks(cmd.Context(), engine.BookmarkQuery{
		Query:  opts.Query,
		Family: family,
		Limit:  opts.Limit,
	})
	if err != nil {
		return out.Fail(string(engine.CodeStoreAccess), "failed to list bookmarks", err)
	}

	if out.Format == "json" {
		return out.Success(bookmarks)
	}
	if len(bookmarks) == 0 {
		fmt.Fprintln(out.Writer, "No bookmarks.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAMILY\tV\tSTATUS\tURL\tTITLE\tFOLDER")
	for _, b := range bookmarks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			b.ID, b.Family, b.Version, b.Status, b.URL, b.Title, b.FolderPath)
	}
	return tw.Flush()
}

func newBookmarksShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <bookmark-id>",
		Short: "Show one canonical bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.engine.GetBookmark(cmd.Context(), args[0])
			if err != nil {
				return s.out.Fail(string(engine.CodeStoreAccess), "failed to get bookmark", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(b)
			}

			w := s.out.Writer
			fmt.Fprintf(w, "Bookmark %s\n", b.ID)
			fmt.Fprintf(w, "  url:     %s\n", b.URL)
			fmt.Fprintf(w, "  title:   %s\n", b.Title)
			fmt.Fprintf(w, "  folder:  %s\n", b.FolderPath)
			fmt.Fprintf(w, "  source:  %s (%s)\n", b.SourceBrowser, b.Family)
			fmt.Fprintf(w, "  version: %d\n", b.Version)
			fmt.Fprintf(w, "  status:  %s\n", b.Status)
			fmt.Fprintf(w, "  synced:  %s\n", b.LastSyncedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newBookmarksHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <bookmark-id>",
		Short: "List history snapshots of a bookmark, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			history, err := s.engine.History(cmd.Context(), args[0])
			if err != nil {
				return s.out.Fail(string(engine.CodeStoreAccess), "failed to list history", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(history)
			}
			if len(history) == 0 {
				fmt.Fprintln(s.out.Writer, "No history.")
				return nil
			}

			tw := tabwriter.NewWriter(s.out.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tV\tTAKEN\tURL\tTITLE\tFOLDER")
			for _, h := range history {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
					h.ID, h.Version, h.CreatedAt.Format(time.RFC3339), h.URL, h.Title, h.FolderPath)
			}
			return tw.Flush()
		},
	}
}
