// Package initcmder provides the init command for initializing a local
// .shopstream directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/config"
)

const (
	dirName    = ".shopstream"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .shopstream/ directory in the current working directory.

Creates a local .shopstream/ directory that takes precedence over the default
~/.shopstream/ directory for configuration, conversation history and session
state, and writes a config.toml into it.

Presets fill config.toml for a deployment:
  local   a shop assistant on localhost with SQLite history
  team    PostgreSQL history and Kafka publishing of received messages

An existing config.toml is left alone unless --force is given.

Examples:
  shopstream init
  shopstream init --preset team
  shopstream init --config-dir /srv/shopstream --preset local --force`

const initShortDesc string = "Initialize a local .shopstream/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.OutOrStdout(), configDir)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Configuration preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(out io.Writer, configDir string) error {
	cfg := config.NewDefaultConfig()
	if c.preset != "" {
		var err error
		cfg, err = config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
	}

	dir := configDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)
	}

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .shopstream directory: %w", err)
		}
	}

	path := filepath.Join(dir, configFile)
	_, err = os.Stat(path)
	switch {
	case err == nil && !c.force:
		fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	verb := "Initialized"
	if existed {
		verb = "Configured"
	}
	fmt.Fprintf(out, "  %s %s .shopstream directory: %s\n", cliui.SuccessMark, verb, dir)
	if c.preset != "" {
		fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Preset:"), cliui.NameStyle.Render(strings.ToLower(c.preset)))
	}
	return nil
}
