package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/processor"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Print circular transfer patterns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		minAmount, err := cmd.Flags().GetFloat64("min-amount")
		if err != nil {
			return err
		}
		maxDepth, err := cmd.Flags().GetInt("max-depth")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		patterns, err := a.engine.CircularPatterns(cmd.Context(), minAmount, maxDepth, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), patterns)
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <entity_id>",
	Short: "Compute the risk score of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		assessment, err := a.engine.RiskScore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), assessment)
	},
}

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Summarise every cached risk score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rollup, err := a.engine.RiskMetrics(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rollup)
	},
}

func init() {
	patternsCmd.Flags().Float64("min-amount", processor.DefaultPatternMinAmount, "minimum amount of every edge in a cycle")
	patternsCmd.Flags().Int("max-depth", processor.DefaultPatternDepth, "maximum cycle length")
	patternsCmd.Flags().Int("limit", processor.MaxPatternLimit, "maximum number of patterns")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
