package historycmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/cmd/shopstream/output"
	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/dotdir"
)

// errNoSession is returned by show without an id when nothing was recorded.
var errNoSession = errors.New("no recent conversation: pass an id or run \"shopstream ask\" first")

func newShowCmd(parent *historyCommander) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a recorded conversation",
		Long: `Show a recorded conversation by id or unique id prefix.

Without an id the most recent conversation started by "shopstream ask" is
shown. Messages and failed records are replayed in stream order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				session, err := dotdir.NewManager().LoadSession(parent.configDir)
				if err != nil {
					return fmt.Errorf("loading session: %w", err)
				}
				if session == nil {
					return errNoSession
				}
				id = session.ConversationID
			}

			store, err := parent.open(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store, cmd.ErrOrStderr())

			id, err = resolveID(ctx, store, id)
			if err != nil {
				return err
			}

			conv, err := store.Get(ctx, id)
			if err != nil {
				return err
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			out := cmd.OutOrStdout()
			cliui.SetPlain(noColor || jsonOut || !cliui.IsTerminal(out))
			printer := output.NewPrinter(out, jsonOut)

			if !jsonOut {
				fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Conversation:"), cliui.NameStyle.Render(conv.ID))
				fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Query:       "), cliui.ValueStyle.Render(conv.Query))
				fmt.Fprintf(out, "  %s %s %s\n", cliui.KeyStyle.Render("Status:      "), statusMark(conv.Status), conv.Status)
				fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Started:     "), cliui.DimStyle.Render(conv.StartedAt.Local().Format(timeLayout)))
			}

			return printer.Conversation(conv)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print one JSON object per record")

	return cmd
}
