// Package tastescmder is the root of the tastes command tree.
package tastescmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/tastes/cmd/tastes/config"
	indexcmder "github.com/papercomputeco/tastes/cmd/tastes/index"
	initcmder "github.com/papercomputeco/tastes/cmd/tastes/init"
	replaycmder "github.com/papercomputeco/tastes/cmd/tastes/replay"
	servecmder "github.com/papercomputeco/tastes/cmd/tastes/serve"
	versioncmder "github.com/papercomputeco/tastes/cmd/version"
)

const tastesLongDesc string = `Tastes keeps a preference vector per user, learned from the products
they view, click, save, buy, and dismiss.

Get started:
  tastes init                      Create a local .tastes/ directory
  tastes index products.jsonl      Load product vectors for recommendations
  tastes serve                     Run the API, workers, and MCP server
  tastes replay                    Rebuild preference state from the event log`

const tastesShortDesc string = "Tastes - user preference vectors"

func NewTastesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tastes",
		Short:         tastesShortDesc,
		Long:          tastesLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .tastes/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
