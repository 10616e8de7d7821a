// Package windowscmder provides the windows command, an interactive view of
// one owner and actor's recency windows on a running tiermem server.
package windowscmder

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/tiermem/api/client"
	"github.com/papercomputeco/tiermem/cmd/tiermem/apiclient"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

type windowsCommander struct {
	apiTarget string
	owner     string
	actor     string
	topic     string
}

const windowsLongDesc string = `Inspect the recency windows of an owner and actor.

Opens an interactive view of the recent, today and weekly windows, newest
first, refreshed every few seconds. Switch windows with tab or the arrow
keys, scroll with j and k, refresh with r and quit with q.

Examples:
  tiermem windows --owner u1 --actor p1
  tiermem windows -o u1 -A clone --topic work`

const windowsShortDesc string = "Inspect recency windows"

func NewWindowsCmd() *cobra.Command {
	cmder := &windowsCommander{}

	cmd := &cobra.Command{
		Use:   "windows",
		Short: windowsShortDesc,
		Long:  windowsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.owner == "" {
				return memory.ErrOwnerRequired
			}
			if cmder.actor == "" {
				return memory.ErrActorRequired
			}

			c, err := apiclient.New(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, c)
		},
	}

	apiclient.AddFlags(cmd, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.owner, "owner", "o", "", "Owner (user) id")
	cmd.Flags().StringVarP(&cmder.actor, "actor", "A", "", "Actor (persona) id")
	cmd.Flags().StringVar(&cmder.topic, "topic", "", "Topic tag scoping the windows")

	return cmd
}

func (c *windowsCommander) run(ctx context.Context, cl *client.Client) error {
	fetch := func(ctx context.Context, window string) ([]memory.Record, error) {
		out, err := cl.Window(ctx, tiered.ShortTermRequest{
			OwnerID:  c.owner,
			ActorID:  c.actor,
			TopicTag: c.topic,
			Window:   window,
		})
		if err != nil {
			return nil, err
		}
		return out.Records, nil
	}

	program := tea.NewProgram(newModel(ctx, c.owner, c.actor, fetch), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running windows view: %w", err)
	}
	return nil
}
