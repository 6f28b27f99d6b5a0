package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStoreRead(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snap := st.Snapshot()
	active := snap.ActiveLen()
	missing := snap.Len() - active

	annotated := 0
	favorites := 0
	completed := 0
	for _, e := range snap.Entries() {
		um, ok := snap.User(e.Identity)
		if !ok {
			continue
		}
		annotated++
		if um.Favorite {
			favorites++
		}
		if um.Completed {
			completed++
		}
	}

	out.Printf("data dir:   %s", cfg.DataDir())
	out.Printf("backend:    %s", orDefault(cfg.Index.TextBackend, store.TextBackendMemory))
	out.Printf("roots:      %d", len(cfg.Scan.Roots))
	for _, root := range cfg.Scan.Roots {
		out.Printf("  %s", root)
	}
	out.Newline()
	out.Printf("scenarios:  %d", active)
	if missing > 0 {
		out.Warningf("missing:    %d (purged after %s)", missing, cfg.Index.OrphanGracePeriod.Std())
	}
	out.Printf("annotated:  %d (%d favorites, %d completed)", annotated, favorites, completed)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
