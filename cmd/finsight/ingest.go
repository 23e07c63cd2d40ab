package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	ingestRecreate  bool
	ingestBatchSize int
)

// ingestCmd loads a stock CSV into the vector store
var ingestCmd = &cobra.Command{
	Use:   "ingest <csv>",
	Short: "Load a stock CSV into the vector store",
	Long: `Embed every row of a stock CSV and upsert it into the configured
collection. Row i is stored with ID i, so reloading the same file replaces
the previous points.

Required columns: Symbol, Name, Sector, Price, MarketCap, PE_Ratio,
Dividend_Yield, Description. An optional Date column enables date filtering.

The file is rejected when any row is malformed; every bad row is reported.

Examples:
  finsight ingest data/stocks.csv
  finsight ingest --recreate --batch-size 128 data/stocks.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestRecreate, "recreate", false, "drop the collection before loading")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", ingest.DefaultBatchSize, "rows embedded per call")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	loader, err := ingest.NewLoader(a.embedder, a.store, ingest.Config{
		Collection: a.cfg.Qdrant.CollectionName,
		BatchSize:  ingestBatchSize,
		Recreate:   ingestRecreate,
	}, a.logger.Underlying())
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d records into %q in %d batches (%s)\n",
		res.Records, a.cfg.Qdrant.CollectionName, res.Batches, res.Duration.Round(time.Millisecond))
	return nil
}
