package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/async"
	"github.com/hanulsoft/scenarium/internal/config"
	"github.com/hanulsoft/scenarium/internal/index"
	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/internal/watcher"
)

func newScanCmd() *cobra.Command {
	var full bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan library roots and update the index",
		Long: `Scan walks the configured roots, discovers scenario packages,
and reconciles the index: new packages are added, moved ones followed,
and vanished ones marked missing until their grace period expires.

Incremental by default: unchanged packages are skipped by descriptor
fingerprint. Use --full to reparse everything.

Examples:
  scenarium scan
  scenarium scan --full
  scenarium scan --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd, full, watch)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Reparse every package, ignoring fingerprints")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and rescan on filesystem changes")

	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, full, watch bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Scan.Roots) == 0 {
		out.Errorf("no roots configured; add them with 'scenarium config init' or SCENARIUM_ROOTS")
		return fmt.Errorf("no roots configured")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine := buildEngine(cfg, st, nil)

	mode := index.ModeIncremental
	if full {
		mode = index.ModeFull
	}

	report, err := engine.Rescan(ctx, mode)
	if err != nil {
		return err
	}
	out.Report(report)

	if !watch {
		return nil
	}
	return runWatch(ctx, cfg, engine, out)
}

// runWatch blocks, rescanning incrementally whenever the roots change,
// until interrupted.
func runWatch(ctx context.Context, cfg *config.Config, engine *index.Engine, out *output.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(cfg.Scan.Roots, watcher.Options{
		Debounce:     cfg.Watch.Debounce.Std(),
		PollInterval: cfg.Watch.PollInterval.Std(),
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	go func() { _ = w.Start(ctx) }()

	out.Printf("watching %d root(s), rescan debounce %s (ctrl-c to stop)",
		len(cfg.Scan.Roots), cfg.Watch.Debounce.Std().Round(time.Millisecond))

	rescanner := async.NewRescanner(engine.Rescan)
	rescanner.Watch(ctx, w.Batches())
	return nil
}
