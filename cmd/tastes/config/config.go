// Package configcmder provides the config command for managing persistent
// tastes configuration stored in the .tastes/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tastes/pkg/cliui"
	"github.com/papercomputeco/tastes/pkg/config"
)

const configLongDesc string = `Manage persistent tastes configuration.

Configuration is stored as config.toml in the .tastes/ directory and provides
default values for command flags. CLI flags and TASTES_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  storage.driver, storage.sqlite_path, api.listen,
  vector_store.provider, embedding.model,
  engine.decay, engine.weights.purchase, eventstream.brokers

Use subcommands to get, set, or list configuration values:
  tastes config set <key> <value>    Set a configuration value
  tastes config get <key>            Get a configuration value
  tastes config list                 List all configuration values

Examples:
  tastes config set storage.driver postgres
  tastes config set engine.decay 0.85
  tastes config get embedding.model
  tastes config list`

const configShortDesc string = "Manage persistent tastes configuration"

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

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
