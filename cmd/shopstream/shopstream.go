// Package shopstreamcmder is the root shopstream command.
package shopstreamcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/shopstream/cmd/shopstream/ask"
	configcmder "github.com/papercomputeco/shopstream/cmd/shopstream/config"
	decodecmder "github.com/papercomputeco/shopstream/cmd/shopstream/decode"
	historycmder "github.com/papercomputeco/shopstream/cmd/shopstream/history"
	initcmder "github.com/papercomputeco/shopstream/cmd/shopstream/init"
	mockcmder "github.com/papercomputeco/shopstream/cmd/shopstream/mock"
	versioncmder "github.com/papercomputeco/shopstream/cmd/version"
)

const shopstreamLongDesc string = `Shopstream is a streaming client for the shop assistant.

Answers arrive as a server-sent event stream; shopstream decodes it
incrementally and renders every message as soon as its record completes.

Get started:
  shopstream init                 Create a local .shopstream/ directory
  shopstream mock                 Run a mock shop assistant on :8000
  shopstream ask "coffee mug"     Ask a question
  shopstream history list         Browse recorded conversations
  shopstream decode capture.sse   Decode a recorded event stream`

const shopstreamShortDesc string = "Shopstream - streaming shop assistant client"

func NewShopstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shopstream",
		Short:        shopstreamShortDesc,
		Long:         shopstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .shopstream/ directory")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colors and styling")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(decodecmder.NewDecodeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(mockcmder.NewMockCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
