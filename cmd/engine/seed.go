package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a synthetic dataset with planted suspicious patterns",
	RunE:  runSeed,
}

func init() {
	defaults := seed.DefaultCounts()
	seedCmd.Flags().Int("normal", defaults.Normal, "number of ordinary transfers")
	seedCmd.Flags().Int("circular", defaults.Circular, "number of circular rings")
	seedCmd.Flags().Int("layering", defaults.Layering, "number of layering trees")
	seedCmd.Flags().Int("structuring", defaults.Structuring, "number of structured deposits")
	seedCmd.Flags().Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	flags := cmd.Flags()
	var counts seed.Counts
	if counts.Normal, err = flags.GetInt("normal"); err != nil {
		return err
	}
	if counts.Circular, err = flags.GetInt("circular"); err != nil {
		return err
	}
	if counts.Layering, err = flags.GetInt("layering"); err != nil {
		return err
	}
	if counts.Structuring, err = flags.GetInt("structuring"); err != nil {
		return err
	}
	seedValue, err := flags.GetUint64("seed")
	if err != nil {
		return err
	}

	gen := seed.NewGenerator(seedValue, nil)
	created, failed := seed.Apply(ctx, a.engine.Transfers(), gen.Dataset(counts), a.logger)

	fmt.Fprintf(cmd.OutOrStdout(), "created %d transfers (%d rejected)\n", created, failed)
	return nil
}
