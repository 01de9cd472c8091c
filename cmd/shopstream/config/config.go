// Package configcmder provides the config command for managing persistent
// shopstream configuration stored in the .shopstream/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/config"
)

const configLongDesc string = `Manage persistent shopstream configuration.

Configuration is stored as config.toml in the .shopstream/ directory and
provides default values for command flags. Environment variables
(SHOPSTREAM_CLIENT_API_TARGET, ...) override the file, and CLI flags always
take precedence over both.

Keys use dotted notation matching the TOML section structure:
  client.api_target, client.timeout,
  decoder.encoding, decoder.strict, decoder.skip_malformed, decoder.max_buffer,
  history.provider, history.sqlite_path, history.postgres_dsn,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  mock.listen

Use subcommands to get, set, or list configuration values:
  shopstream config set <key> <value>    Set a configuration value
  shopstream config get <key>            Get a configuration value
  shopstream config list                 List all configuration values

Examples:
  shopstream config set client.api_target http://shop.internal:8000
  shopstream config set decoder.encoding iso-8859-1
  shopstream config get history.provider
  shopstream config list`

const configShortDesc string = "Manage persistent shopstream configuration"

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

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
