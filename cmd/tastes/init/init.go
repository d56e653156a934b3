// Package initcmder provides the init command for initializing a local .tastes
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tastes/pkg/cliui"
	"github.com/papercomputeco/tastes/pkg/config"
)

const (
	dirName = ".tastes"
)

const initLongDesc string = `Initialize a new .tastes/ directory in the current working directory.

Creates a local .tastes/ directory that takes precedence over the default
~/.tastes/ directory for storage, configuration, and replay checkpoints,
and writes a config.toml. An existing config.toml is kept unless --force
is given.

Presets pick an embedding provider and backing services:
  ollama    Local Ollama embeddings with SQLite storage (default stack)
  openai    OpenAI text-embedding-3-small with SQLite storage
  cluster   PostgreSQL storage, Qdrant index, and Kafka change events

Examples:
  tastes init
  tastes init --preset openai`

const initShortDesc string = "Initialize a local .tastes/ directory"

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
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		"Config preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(out io.Writer) error {
	cfg := config.NewDefaultConfig()
	if c.preset != "" {
		var err error
		cfg, err = config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .tastes directory: %w", err)
	}
	fmt.Fprintf(out, "\n  %s Initialized %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(dir))

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && !c.force:
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Keeping existing config.toml (use --force to overwrite)"))
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	preset := c.preset
	if preset == "" {
		preset = "default"
	}
	fmt.Fprintf(out, "  %s Wrote %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(cfger.GetTarget()),
		cliui.DimStyle.Render("("+preset+")"),
	)
	return nil
}
