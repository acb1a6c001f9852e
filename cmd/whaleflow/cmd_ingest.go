package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ingestCmd loads a whale transaction export into PostgreSQL
var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Load an NDJSON whale transaction export",
	Long: `Load newline-delimited JSON transactions into the transaction store.
Each line is an object with hash, timestamp_ms, symbol, classification,
usd_value and counterparty_type. Already stored hashes are skipped, so an
export can be loaded again safely.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if appConfig.Storage.UseMemory {
		return errors.New("ingest into memory storage is lost on exit; use backtest --transactions instead")
	}

	a, err := newApp(cmd.Context(), appConfig, rootLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ingestFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "read %d, inserted %d, duplicates %d, invalid %d\n",
		res.Read, res.Inserted, res.Duplicates, res.Invalid)
	return err
}
