// Package recallcmder provides the recall command, which queries both memory
// tiers of a running tiermem server.
package recallcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tiermem/api"
	"github.com/papercomputeco/tiermem/cmd/tiermem/apiclient"
	"github.com/papercomputeco/tiermem/pkg/cliui"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

type recallCommander struct {
	apiTarget string
	plain     bool
	req       tiered.RecallRequest
}

const recallLongDesc string = `Recall memories for an owner.

With --actor, the recent conversation with that actor is shown first,
followed by the long-term memories most similar to the query.

Output is rendered as markdown on a terminal. Use --plain, or pipe the
output, to get one prompt-ready line per memory.

Examples:
  tiermem recall --owner u1 "pets"
  tiermem recall --owner u1 --actor p1 --limit 10 "what happened at work"
  tiermem recall --owner u1 --type debate --plain "remote work"`

const recallShortDesc string = "Recall memories"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.req.Query = strings.Join(args, " ")
			if err := cmder.req.Validate(); err != nil {
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

			out, err := c.Recall(ctx, cmder.req)
			if err != nil {
				return err
			}
			return cmder.render(cmd.OutOrStdout(), out)
		},
	}

	apiclient.AddFlags(cmd, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.req.OwnerID, "owner", "o", "", "Owner (user) id")
	cmd.Flags().StringVarP(&cmder.req.ActorID, "actor", "A", "", "Actor (persona) id; includes recent context")
	cmd.Flags().StringVarP(&cmder.req.Type, "type", "t", "", "Only recall memories of this type")
	cmd.Flags().StringVar(&cmder.req.TopicTag, "topic", "", "Topic tag scoping the recency windows")
	cmd.Flags().IntVarP(&cmder.req.Limit, "limit", "k", 0, "Maximum long-term memories (1-20, default from server)")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print plain lines instead of markdown")

	return cmd
}

func (c *recallCommander) render(w io.Writer, out *api.RecallResponse) error {
	f, isFile := w.(*os.File)
	if c.plain || !isFile || !cliui.IsTerminal(f) {
		if len(out.Lines) == 0 {
			fmt.Fprintln(w, tiered.NoMemories)
			return nil
		}
		for _, line := range out.Lines {
			fmt.Fprintln(w, line)
		}
		return nil
	}

	md := cliui.MemoriesMarkdown("Memories for "+c.req.OwnerID,
		memory.FormatAll(out.Recent),
		memory.FormatAll(out.LongTerm),
	)
	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		fmt.Fprint(w, md)
		return nil //nolint:nilerr // fall back to raw markdown
	}
	fmt.Fprint(w, rendered)
	return nil
}
