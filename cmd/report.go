package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/matching"
)

var reportCmd = &cobra.Command{
	Use:   "report [candidate-id]...",
	Short: "Print store totals, and performance and fairness figures after ranking the given candidates",
	Run: func(cmd *cobra.Command, args []string) {
		report(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("output", "o", "table", "output format: table or json")
}

func report(cmd *cobra.Command, candidates []string) {
	ctx := context.Background()
	a := setup(ctx)
	defer a.Close()

	for _, id := range candidates {
		if _, err := a.engine.GetRecommendations(ctx, id, matching.RecommendOptions{}); err != nil {
			a.logger.Warn("skipping candidate", zap.String("candidate_id", id), zap.Error(err))
		}
	}

	counts, err := a.store.Counts(ctx)
	if err != nil {
		a.logger.Fatal("counting records", zap.Error(err))
	}
	outcomes, err := a.store.OutcomeCounts(ctx)
	if err != nil {
		a.logger.Fatal("counting outcomes", zap.Error(err))
	}
	metrics := a.engine.GetPerformanceMetrics()
	fairness := a.engine.GetFairnessReport()

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		err := printJSON(map[string]any{
			"store":       counts,
			"outcomes":    outcomes,
			"performance": metrics,
			"fairness":    fairness,
			"weights":     a.engine.Weights(),
		})
		if err != nil {
			a.logger.Fatal("printing the report", zap.Error(err))
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "candidates\t%s\n", humanize.Comma(int64(counts.Candidates)))
	fmt.Fprintf(w, "jobs\t%s\n", humanize.Comma(int64(counts.Jobs)))
	fmt.Fprintf(w, "feedback\t%s\n", humanize.Comma(int64(counts.Feedback)))
	fmt.Fprintf(w, "pending inbox\t%s\n", humanize.Comma(int64(counts.Pending)))

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, humanize.Comma(int64(outcomes[name])))
	}

	snap := a.engine.Weights()
	fmt.Fprintf(w, "weights\tv%d %s (%s)\n", snap.Version, snap.Weights, humanize.Time(snap.UpdatedAt))

	fmt.Fprintf(w, "matches processed\t%s\n", humanize.Comma(metrics.TotalProcessed))
	fmt.Fprintf(w, "avg latency\t%s\n", metrics.AvgLatency)
	fmt.Fprintf(w, "cache hit rate\t%s%%\n", humanize.FormatFloat("#.##", metrics.CacheHitRate*100))
	fmt.Fprintf(w, "error rate\t%s%%\n", humanize.FormatFloat("#.##", metrics.ErrorRate*100))
	fmt.Fprintf(w, "pool peak\t%d of %d workers\n", metrics.Pool.Peak, metrics.Pool.Workers)

	fmt.Fprintf(w, "overall fairness\t%s\n", humanize.FormatFloat("#.###", fairness.OverallFairness))
	fmt.Fprintf(w, "fairness adjustments\t%s of %s\n", humanize.Comma(fairness.Adjusted), humanize.Comma(fairness.Evaluated))
	attrs := make([]string, 0, len(fairness.DisparityMetrics))
	for attr := range fairness.DisparityMetrics {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		d := fairness.DisparityMetrics[attr]
		fmt.Fprintf(w, "  %s\timpact ratio %s, max gap %s\n", attr,
			humanize.FormatFloat("#.###", d.ImpactRatio), humanize.FormatFloat("#.###", d.MaxGap))
	}
}
