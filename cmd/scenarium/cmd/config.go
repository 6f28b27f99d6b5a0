package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hanulsoft/scenarium/internal/config"
	"github.com/hanulsoft/scenarium/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
		RunE:  runConfigShow,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newConfigInitCmd() *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "init [root]...",
		Short: "Write a starter config file",
		Long: `Init writes a config file seeded with the given library roots.
By default it writes .scenarium.yaml in the current directory; --user
writes the per-user config instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, args, user)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the per-user config file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, roots []string, user bool) error {
	out := output.New(cmd.OutOrStdout())

	path := config.LocalConfigName
	if user {
		path = config.UserConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.New()
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			out.Warningf("%s is not an existing directory", abs)
		}
		cfg.Scan.Roots = append(cfg.Scan.Roots, abs)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	out.Successf("wrote %s", path)
	if len(cfg.Scan.Roots) == 0 {
		out.Printf("add your library roots under scan.roots, then run 'scenarium scan'")
	}
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.Printf("user:  %s", config.UserConfigPath())
			wd, err := os.Getwd()
			if err == nil {
				out.Printf("local: %s", filepath.Join(wd, config.LocalConfigName))
			}
			return nil
		},
	}
}
