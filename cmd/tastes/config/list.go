package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tastes/pkg/cliui"
	"github.com/papercomputeco/tastes/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .tastes/ directory. Credentials are masked.

Examples:
  tastes config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return err
	}
	printTarget(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	fields := make([]cliui.Field, 0, len(keys))
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			value = mask(value)
		}
		fields = append(fields, cliui.Field{Key: key, Value: value})
	}
	cliui.Fields(w, fields...)
	fmt.Fprintln(w)

	return nil
}

// mask hides all but the last four characters of a credential.
func mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
