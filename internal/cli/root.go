// Package cli implements animectl, a terminal client that drives the catalog
// service directly against the configured cache store.
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"animesync/internal/app"
	"animesync/internal/config"
	"animesync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	CacheType string
	CachePath string
	TTL       time.Duration

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the application a command runs against.
type Opener func(opts *RootOptions, cmd *cobra.Command) (*app.App, error)

// OpenFromEnv loads configuration from the environment, applies flag
// overrides and opens the cache store. Logs go to stderr.
func OpenFromEnv(opts *RootOptions, cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.CacheType != "" {
		cfg.Cache.Type = opts.CacheType
	}
	if opts.CachePath != "" {
		cfg.Cache.Path = opts.CachePath
	}
	if opts.TTL > 0 {
		cfg.Cache.TTL = opts.TTL
	}
	// the background refresh belongs to the server
	cfg.Refresh.Interval = 0

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log := logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
	return app.New(cfg, log)
}

// NewRootCommand creates the root command for animectl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "animectl",
		Short: "Browse the top anime catalog through the local cache",
		Long: `animectl reads anime through the same cache as the API server.

Fresh cached records are served without contacting the Jikan API; stale or
missing ones are fetched, merged with local favorites and written back.
Every emitted value is printed with the place it came from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.CacheType, "cache", "", "cache store override (sqlite|postgres|mysql|mongodb|redis|memory)")
	cmd.PersistentFlags().StringVar(&opts.CachePath, "db", "", "SQLite database path override")
	cmd.PersistentFlags().DurationVar(&opts.TTL, "ttl", 0, "freshness window override")

	cmd.AddCommand(NewTopCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewFavoriteCommand(opts))
	cmd.AddCommand(NewFavoritesCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// withApp opens the application, runs fn and closes it.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(a *app.App, out *OutputFormatter) error) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	a, err := opts.open(opts, cmd)
	if err != nil {
		_ = out.Error(ErrCodeSetup, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer a.Close()

	return fn(a, out)
}
