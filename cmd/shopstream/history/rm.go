package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/dotdir"
)

func newRmCmd(parent *historyCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a recorded conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := parent.open(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store, cmd.ErrOrStderr())

			id, err := resolveID(ctx, store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, id); err != nil {
				return fmt.Errorf("deleting conversation: %w", err)
			}

			manager := dotdir.NewManager()
			session, err := manager.LoadSession(parent.configDir)
			if err == nil && session != nil && session.ConversationID == id {
				if err := manager.ClearSession(parent.configDir); err != nil {
					parent.logger.Warn("could not clear session", "error", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
			return nil
		},
	}

	return cmd
}
