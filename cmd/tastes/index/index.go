// Package indexcmder provides the `tastes index` CLI command.
package indexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tastes/cmd/tastes/stack"
	"github.com/papercomputeco/tastes/pkg/catalog"
	"github.com/papercomputeco/tastes/pkg/cliui"
	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/logger"
)

const indexLongDesc string = `Load a product catalog into the product index.

Reads a JSONL file with one product per line:

  {"product_id": "p1", "title": "Desk Lamp", "description": "...", "tags": ["home"]}

Products are embedded with the configured embedding provider, the same way
interactions with a product are, so recommendations compare like with like.
Lines may instead carry a precomputed "vector" with its "provenance"; those
are used as-is when the provenance matches the index.

Examples:
  tastes index products.jsonl
  tastes index products.jsonl --batch-size 128`

const indexShortDesc string = "Load product vectors for recommendations"

type indexCommander struct {
	batchSize int
	debug     bool
	configDir string
}

// NewIndexCmd creates the index cobra command.
func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <catalog.jsonl>",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), config.FromViper(v), args[0])
		},
	}

	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", catalog.DefaultBatchSize, "Products written to the index per batch")

	return cmd
}

func (c *indexCommander) run(ctx context.Context, out io.Writer, cfg *config.Config, path string) error {
	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	}

	var parsed *catalog.ParseResult
	err := cliui.Step(out, "Reading catalog", func() error {
		var err error
		parsed, err = catalog.ParseFile(path)
		return err
	})
	if err != nil {
		return err
	}
	if parsed.Malformed > 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(
			fmt.Sprintf("Skipped %d malformed lines", parsed.Malformed)))
	}

	st, err := stack.Build(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.Index == nil {
		return errors.New("no product index configured; set vector_store.provider")
	}

	x, err := catalog.NewIndexer(st.Index, st.Embedder, c.batchSize, log)
	if err != nil {
		return err
	}

	var res *catalog.IndexResult
	err = cliui.Step(out, fmt.Sprintf("Indexing %d products", len(parsed.Products)), func() error {
		var err error
		res, err = x.Index(ctx, parsed.Products)
		return err
	})
	if res != nil {
		fmt.Fprintln(out)
		cliui.Fields(out,
			cliui.Field{Key: "Indexed", Value: fmt.Sprint(res.Indexed)},
			cliui.Field{Key: "Embedded", Value: fmt.Sprint(res.Embedded)},
			cliui.Field{Key: "Precomputed", Value: fmt.Sprint(res.Precomputed)},
			cliui.Field{Key: "Rejected", Value: fmt.Sprint(res.Rejected)},
			cliui.Field{Key: "Index", Value: st.Index.Provenance().String()},
		)
		fmt.Fprintln(out)
	}
	return err
}
