// Package cmd provides the CLI commands for scenarium.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/config"
	"github.com/hanulsoft/scenarium/internal/index"
	"github.com/hanulsoft/scenarium/internal/logging"
	"github.com/hanulsoft/scenarium/internal/store"
	"github.com/hanulsoft/scenarium/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the scenarium CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarium",
		Short: "Index and search scenario package libraries",
		Long: `Scenarium keeps a searchable index of scenario packages spread
across your library directories.

Point it at your roots once ('scenarium config init'), then
'scenarium scan' to index and 'scenarium search' to find scenarios
by title, author, synopsis, tags, or difficulty.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("scenarium version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is best-effort for a CLI run.
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return config.Load(wd)
}

// openStore opens the index store described by cfg.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		DataDir:     cfg.DataDir(),
		TextBackend: cfg.Index.TextBackend,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

// openStoreRead opens the index store for queries only. It takes no write
// lock, so it works while a scan holds the store in another process.
func openStoreRead(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		DataDir:  cfg.DataDir(),
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

// buildEngine wires a sync engine from config.
func buildEngine(cfg *config.Config, st *store.Store, onProgress func(index.Progress)) *index.Engine {
	return index.NewEngine(st, index.Config{
		Roots:             cfg.Scan.Roots,
		ExcludePatterns:   cfg.Scan.Exclude,
		FollowSymlinks:    cfg.Scan.FollowSymlinks,
		MaxWorkers:        cfg.Scan.MaxWorkers,
		ParseTimeout:      cfg.Scan.ParseTimeout.Std(),
		OrphanGracePeriod: cfg.Index.OrphanGracePeriod.Std(),
		DuplicatePolicy:   cfg.Index.DuplicatePolicy,
		OnProgress:        onProgress,
	})
}
