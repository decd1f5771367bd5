package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/api"
	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/source"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Host string
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync API over HTTP",
		Long: `Serve the sync API over HTTP until interrupted.

Routes:
  POST /sync/{family}                       stage a batch {path, source, profile}
  GET  /sync/batches?status=                list batches
  GET  /sync/batch/{id}                     batch with pending changes
  POST /sync/commit/{id}                    commit {change_ids}
  POST /sync/reject/{id}                    reject
  GET  /bookmarks?q=&family=&limit=         list bookmarks
  GET  /bookmarks/{id}                      one bookmark
  GET  /bookmarks/{id}/history              history snapshots
  POST /bookmarks/{id}/revert/{historyID}   revert
  GET  /stats                               counts

Example:
  marksync serve --port 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (default from config, 127.0.0.1)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (default from config, 5000)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Host != "" {
		s.cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		s.cfg.Port = opts.Port
	}
	if err := s.cfg.Validate(); err != nil {
		return s.out.Fail(ErrCodeConfig, "invalid listen address", err)
	}

	copyTimeout := s.cfg.CopyTimeout
	srv := api.New(s.engine,
		api.WithLogger(s.logger),
		api.WithReaders(func(family ir.SourceFamily, path string) (source.Reader, error) {
			return source.New(family, path, source.WithCopyTimeout(copyTimeout))
		}),
		api.WithDefaultPath(ir.FamilyFirefox, s.cfg.FirefoxProfilePath),
		api.WithDefaultPath(ir.FamilyChrome, s.cfg.ChromeProfilePath),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := s.cfg.ListenAddr()
	fmt.Fprintf(s.out.GetErrWriter(), "Serving on http://%s (Ctrl-C to stop)\n", addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return s.out.Fail(ErrCodeServe, "server error", err)
	}
	return nil
}
