// Package apiclient wires the --api-target flag of the client commands to
// the config precedence chain and builds an API client from it.
package apiclient

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tiermem/api/client"
	"github.com/papercomputeco/tiermem/pkg/config"
)

// AddFlags registers the --api-target flag on cmd.
func AddFlags(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, target)
}

// New resolves client.api_target (flag > env > config.toml > default) and
// returns a client for it.
func New(cmd *cobra.Command) (*client.Client, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

	return client.New(v.GetString(config.Flags[config.FlagAPITarget].ViperKey), nil)
}
