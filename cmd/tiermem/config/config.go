// Package configcmder provides the config command for managing persistent
// tiermem configuration stored in the .tiermem/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tiermem/pkg/cliui"
	"github.com/papercomputeco/tiermem/pkg/config"
)

const configLongDesc string = `Manage persistent tiermem configuration.

Configuration is stored as config.toml in the .tiermem/ directory and provides
default values for command flags. CLI flags and TIERMEM_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  cache.provider, cache.target,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.model, embedding.dimensions,
  scorer.provider, scorer.model,
  memory.weekly_threshold, memory.promotion_threshold,
  events.provider, retention.enabled

Use subcommands to get, set, or list configuration values:
  tiermem config set <key> <value>    Set a configuration value
  tiermem config get <key>            Get a configuration value
  tiermem config list                 List all configuration values

Examples:
  tiermem config set cache.provider redis
  tiermem config set memory.promotion_threshold 6
  tiermem config get scorer.provider
  tiermem config list`

const configShortDesc string = "Manage persistent tiermem configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
