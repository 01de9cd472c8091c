package historycmder

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/utils"
)

const (
	shortIDLen   = 8
	queryPreview = 48
	timeLayout   = "2006-01-02 15:04:05"
)

// summary is the JSON form of one listed conversation.
type summary struct {
	ID           string      `json:"id"`
	Query        string      `json:"query"`
	Status       chat.Status `json:"status"`
	StartedAt    string      `json:"started_at"`
	Messages     int         `json:"messages"`
	Products     int         `json:"products"`
	RecordErrors int         `json:"record_errors"`
}

func newListCmd(parent *historyCommander) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := parent.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(store, cmd.ErrOrStderr())

			convs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			out := cmd.OutOrStdout()
			cliui.SetPlain(noColor || jsonOut || !cliui.IsTerminal(out))
			if jsonOut {
				enc := json.NewEncoder(out)
				for _, c := range convs {
					if err := enc.Encode(summarize(c)); err != nil {
						return err
					}
				}
				return nil
			}

			if len(convs) == 0 {
				fmt.Fprintf(out, "  %s No conversations recorded yet.\n", cliui.DimStyle.Render("●"))
				return nil
			}

			for _, c := range convs {
				fmt.Fprintf(out, "  %s  %s  %s  %s  %s\n",
					cliui.NameStyle.Render(c.ID[:min(shortIDLen, len(c.ID))]),
					cliui.DimStyle.Render(c.StartedAt.Local().Format(timeLayout)),
					statusMark(c.Status),
					cliui.ValueStyle.Render(utils.Truncate(c.Query, queryPreview)),
					cliui.DimStyle.Render(counts(c)),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of conversations to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print one JSON object per conversation")

	return cmd
}

func summarize(c *chat.Conversation) summary {
	return summary{
		ID:           c.ID,
		Query:        c.Query,
		Status:       c.Status,
		StartedAt:    c.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Messages:     len(c.Messages),
		Products:     len(c.Products()),
		RecordErrors: len(c.Errors),
	}
}

func statusMark(s chat.Status) string {
	switch s {
	case chat.StatusComplete:
		return cliui.SuccessMark
	case chat.StatusFailed:
		return cliui.FailMark
	default:
		return cliui.WarnMark
	}
}

func counts(c *chat.Conversation) string {
	s := "(" + strconv.Itoa(len(c.Messages)) + " messages, " + strconv.Itoa(len(c.Products())) + " products"
	if len(c.Errors) > 0 {
		s += ", " + strconv.Itoa(len(c.Errors)) + " bad records"
	}
	return s + ")"
}
