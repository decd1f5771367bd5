package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/marksync/internal/config"
	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	ConfigFile   string
	Database     string // overrides the configured database when set
	DeletePolicy string // overrides the configured delete policy when set

	// engineOpts are appended to every engine the commands build (for testing).
	engineOpts []engine.EngineOption
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the marksync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marksync",
		Short: "marksync - reviewable bookmark sync",
		Long: `Reconcile browser bookmarks against a canonical, versioned store.

Each sync stages the differences between one browser source and the
canonical bookmarks of its family as a batch. Nothing changes until the
batch is committed, in full or in part. Every committed mutation keeps a
history snapshot that can be reverted to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default $HOME/.marksync.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the canonical SQLite store (default bookmarks.db)")
	cmd.PersistentFlags().StringVar(&opts.DeletePolicy, "delete-policy", "", "mark_deleted commit policy (remove|soft)")

	// Add subcommands
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewRevertCommand(opts))
	cmd.AddCommand(NewBookmarksCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// loadConfig reads configuration and applies the global flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.DeletePolicy != "" {
		p, err := engine.ParseDeletePolicy(o.DeletePolicy)
		if err != nil {
			return nil, err
		}
		cfg.DeletePolicy = p
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a text logger on w at the configured level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is the state shared by commands that touch the store.
type session struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads configuration, opens the store, and builds the engine.
// Failures are reported through the formatter.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	out := o.formatter(cmd)

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, out.Fail(ErrCodeConfig, "failed to load configuration", err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, out.Fail(ErrCodeDatabase, "failed to open database", err)
	}

	opts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithDeletePolicy(cfg.DeletePolicy),
	}
	opts = append(opts, o.engineOpts...)

	return &session{
		cfg:    cfg,
		store:  st,
		engine: engine.New(st, opts...),
		logger: logger,
		out:    out,
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}
