package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect or recalibrate the scoring weights",
}

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the live weights and their history",
	Run: func(cmd *cobra.Command, _ []string) {
		showWeights(cmd)
	},
}

var weightsRecalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Refit the weights on the feedback log now",
	Run: func(_ *cobra.Command, _ []string) {
		recalibrate()
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)
	weightsCmd.AddCommand(weightsShowCmd, weightsRecalibrateCmd)

	weightsShowCmd.Flags().Int("history", 10, "number of past versions to list")
}

func showWeights(cmd *cobra.Command) {
	ctx := context.Background()
	l := newLogger()
	_, st := openStore(l)
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("history")
	history, err := st.WeightHistory(ctx, limit)
	if err != nil {
		l.Fatal("listing weights", zap.Error(err))
	}
	if len(history) == 0 {
		history = []weights.Snapshot{{Weights: weights.Default(), Version: 1, Source: "default"}}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "VERSION\tUPDATED\tSOURCE")
	for _, c := range weights.Components {
		fmt.Fprintf(w, "\t%s", c)
	}
	fmt.Fprintln(w)
	for _, s := range history {
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = humanize.Time(s.UpdatedAt)
		}
		fmt.Fprintf(w, "%d\t%s\t%s", s.Version, updated, s.Source)
		for _, c := range weights.Components {
			fmt.Fprintf(w, "\t%.4f", s.Weights.Get(c))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func recalibrate() {
	ctx := context.Background()
	a := setup(ctx)
	defer a.Close()

	res, snap, err := a.engine.Recalibrate(ctx)
	if errors.Is(err, learning.ErrInsufficientData) {
		a.logger.Info("recalibration skipped", zap.Error(err))
		return
	}
	if err != nil {
		a.logger.Fatal("recalibration failed", zap.Error(err))
	}

	a.logger.Info("weights recalibrated",
		zap.Uint64(logger.FieldWeightsVersion, snap.Version),
		zap.Int("samples", res.Samples),
		zap.Int("positives", res.Positives),
		zap.Float64("accuracy", res.Accuracy),
		zap.Stringer("fitted", res.Weights),
		zap.Stringer("live", snap.Weights),
	)
}
