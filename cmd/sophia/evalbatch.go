package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-sophia/pkg/evaluation"
)

func newEvalBatchCmd() *cobra.Command {
	var (
		asJSON  bool
		enforce bool
	)
	cmd := &cobra.Command{
		Use:   "eval-batch",
		Short: "Score replies to the reference questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := evaluation.EvaluateBatch(cmd.Context(), a.composer, nil)
			if err := printBatch(cmd.OutOrStdout(), res, asJSON); err != nil {
				return err
			}
			if enforce && !res.TargetMet {
				return fmt.Errorf("average score %.2f below target %.2f", res.AverageScore, res.TargetScore)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&enforce, "enforce", false, "exit non-zero when the target score is missed")
	return cmd
}

func printBatch(w io.Writer, res evaluation.BatchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tTIER\tFAITH\tREL\tCORR\tAVG")
	for _, r := range res.Results {
		m := r.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
			r.Query, r.Tier, m.Faithfulness, m.Relevance, m.Correctness, m.Average)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "MET"
	if !res.TargetMet {
		status = "MISSED"
	}
	_, err := fmt.Fprintf(w, "\n%d queries, average %.2f, target %.2f %s (%s)\n",
		res.TotalQueries, res.AverageScore, res.TargetScore, status, res.Duration.Round(time.Millisecond))
	return err
}
