// Package remembercmder provides the remember command, which writes an
// utterance to a running tiermem server.
package remembercmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tiermem/cmd/tiermem/apiclient"
	"github.com/papercomputeco/tiermem/pkg/cliui"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

type rememberCommander struct {
	apiTarget string
	entry     tiered.Entry
}

const rememberLongDesc string = `Remember an utterance.

Writes the text to the recent and today windows of the owner and actor
immediately. The server then scores it and, depending on the score, also
admits it to the weekly window and long-term memory.

Examples:
  tiermem remember --owner u1 --actor p1 "I finally adopted a cat"
  tiermem remember --owner u1 --actor clone --type debate "Remote work wins"
  tiermem remember -o u1 -A p1 --topic pets "Her name is Miso"`

const rememberShortDesc string = "Remember an utterance"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.entry.Content = strings.Join(args, " ")
			if err := cmder.entry.Validate(); err != nil {
				return err
			}

			c, err := apiclient.New(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			w := cmd.OutOrStdout()
			err = cliui.Step(w, "Remembering", func() error {
				return c.Remember(ctx, cmder.entry)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("scoring continues in the background"))
			return nil
		},
	}

	apiclient.AddFlags(cmd, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.entry.OwnerID, "owner", "o", "", "Owner (user) id")
	cmd.Flags().StringVarP(&cmder.entry.ActorID, "actor", "A", "", "Actor (persona) id")
	cmd.Flags().StringVarP(&cmder.entry.Type, "type", "t", "", "Memory type (default chat)")
	cmd.Flags().StringVar(&cmder.entry.TopicTag, "topic", "", "Topic tag scoping the recency windows")

	return cmd
}
