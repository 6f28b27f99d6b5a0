package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/internal/query"
	"github.com/hanulsoft/scenarium/internal/store"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show one scenario in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}
}

// findEntry resolves a package directory path to its index entry.
func findEntry(snap *store.Snapshot, path string) (*store.Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if e, ok := snap.ByPath(abs); ok {
		return e, nil
	}
	if e, ok := snap.ByPath(path); ok {
		return e, nil
	}
	return nil, fmt.Errorf("no indexed scenario at %s (try 'scenarium scan')", path)
}

func runShow(cmd *cobra.Command, path string) error {
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
	entry, err := findEntry(snap, path)
	if err != nil {
		return err
	}

	user, _ := snap.User(entry.Identity)
	output.New(cmd.OutOrStdout()).Entry(query.Result{Entry: entry, User: user})
	return nil
}
