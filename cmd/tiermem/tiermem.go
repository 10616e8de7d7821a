// Package tiermemcmder
package tiermemcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/tiermem/cmd/tiermem/auth"
	configcmder "github.com/papercomputeco/tiermem/cmd/tiermem/config"
	recallcmder "github.com/papercomputeco/tiermem/cmd/tiermem/recall"
	remembercmder "github.com/papercomputeco/tiermem/cmd/tiermem/remember"
	servecmder "github.com/papercomputeco/tiermem/cmd/tiermem/serve"
	windowscmder "github.com/papercomputeco/tiermem/cmd/tiermem/windows"
	versioncmder "github.com/papercomputeco/tiermem/cmd/version"
)

const tiermemLongDesc string = `tiermem is tiered conversational memory for agents.

Utterances land in short-term recency windows right away, are scored for
importance in the background, and the ones that matter are promoted to a
weekly window and to long-term semantic memory.

Run the server:
  tiermem serve

Talk to a running server:
  tiermem remember --owner u1 --actor p1 "I adopted a cat"
  tiermem recall --owner u1 --actor p1 "pets"
  tiermem windows --owner u1 --actor p1`

const tiermemShortDesc string = "tiermem - tiered conversational memory"

func NewTiermemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tiermem",
		Short:        tiermemShortDesc,
		Long:         tiermemLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .tiermem/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(windowscmder.NewWindowsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
