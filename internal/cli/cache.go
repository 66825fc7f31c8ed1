package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasilvv/decor/internal/artifact"
)

// CacheOptions holds flags for the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Path string
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the artifact store",
	}
	cmd.PersistentFlags().StringVar(&opts.Path, "db", "", "artifact database path (default from decor.toml)")

	cmd.AddCommand(newCacheStatsCommand(opts))
	cmd.AddCommand(newCacheClearCommand(opts))
	return cmd
}

func newCacheStatsCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show artifact and run counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(formatter *OutputFormatter, store *artifact.Store) error {
				stats, err := store.ReadStats(cmd.Context())
				if err != nil {
					return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("reading stats: %v", err))
				}
				if formatter.Format == "json" {
					return formatter.Success(stats)
				}
				fmt.Fprintf(formatter.Writer, "artifacts: %d\nruns: %d\n", stats.Artifacts, stats.Runs)
				return nil
			})
		},
	}
}

func newCacheClearCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Delete every stored artifact and run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(formatter *OutputFormatter, store *artifact.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("clearing store: %v", err))
				}
				return formatter.Success("cache cleared")
			})
		},
	}
}

// withStore resolves the database path, opens the store, and hands it to fn.
func withStore(opts *CacheOptions, cmd *cobra.Command, fn func(*OutputFormatter, *artifact.Store) error) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	path := opts.Path
	if path == "" {
		path = opts.Config.Cache
	}
	if path == "" {
		return outputCommandError(formatter, ErrCodeNotFound, "no artifact database configured: pass --db or set cache in decor.toml")
	}

	store, err := artifact.Open(path)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("opening artifact store: %v", err))
	}
	defer store.Close()

	return fn(formatter, store)
}
