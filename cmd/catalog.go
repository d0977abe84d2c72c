package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rescue/app/plugins"
	"github.com/kilianp07/rescue/config"
	"github.com/kilianp07/rescue/core/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List capabilities and available backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "capabilities:")
		for _, c := range model.Capabilities() {
			fmt.Fprintf(out, "  %s\n", c)
		}
		fmt.Fprintf(out, "stores: %v\n", plugins.Stores.Types())
		fmt.Fprintf(out, "notifiers: %v\n", plugins.Notifiers.Types())
		fmt.Fprintf(out, "journal: %v\n", append(plugins.JournalStores.Types(), "none"))
		return nil
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !slices.Contains(plugins.Stores.Types(), cfg.Store.Type) {
			return fmt.Errorf("store: unknown type %q", cfg.Store.Type)
		}
		for _, n := range cfg.Notifiers {
			if !slices.Contains(plugins.Notifiers.Types(), n.Type) {
				return fmt.Errorf("notifier: unknown type %q", n.Type)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (store=%s, notifiers=%d, journal=%s)\n",
			cfgPath, cfg.Store.Type, len(cfg.Notifiers), cfg.Journal.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd, checkConfigCmd)
}
