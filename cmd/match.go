package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match <candidate-id> <job-id>",
	Short: "Score one candidate against one job and explain the result",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runMatch(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("skip-fairness", false, "report the raw score without fairness correction")
	matchCmd.Flags().Int("max-suggestions", 0, "maximum number of improvement suggestions (default from config)")
}

func runMatch(cmd *cobra.Command, candidateID, jobID string) {
	ctx := context.Background()
	a := setup(ctx)
	defer a.Close()

	skip, _ := cmd.Flags().GetBool("skip-fairness")
	maxSuggestions, _ := cmd.Flags().GetInt("max-suggestions")

	res, err := a.engine.MatchJob(ctx, candidateID, jobID, matching.MatchOptions{
		SkipFairness:   skip,
		MaxSuggestions: maxSuggestions,
	})
	if err != nil {
		a.logger.Fatal("matching failed", append(logger.MatchFields(candidateID, jobID), zap.Error(err))...)
	}

	if res.Degraded() {
		a.logger.Warn("match is degraded", zap.Any("failures", res.Metadata.Failures))
	}
	a.logger.Info("match computed",
		zap.Float64("score", res.Score),
		zap.Float64("confidence", res.Confidence),
		zap.String("band", res.Explanation.Band),
	)

	if err := printJSON(res); err != nil {
		a.logger.Fatal("printing the result", zap.Error(err))
	}
}
