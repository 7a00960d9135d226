package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <candidate-id> <job-id>",
	Short: "Record the outcome of a match and let the weights learn from it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		feedback(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringP("outcome", "o", "", "hired, offered, interviewed or rejected")
	feedbackCmd.Flags().Float64("rating", -1, "optional user rating in [0,1]")
	feedbackCmd.Flags().Float64("confidence", 0, "confidence of the rating in [0,1]; above the threshold the weights move immediately")
	feedbackCmd.Flags().BoolP("interactive", "i", false, "ask for the outcome and rating")
	feedbackCmd.Flags().StringP("exclude-file", "e", "", "append rejected jobs to this exclude file")
}

func feedback(cmd *cobra.Command, candidateID, jobID string) {
	ctx := context.Background()
	a := setup(ctx)
	defer a.Close()

	flags := cmd.Flags()
	ev := learning.FeedbackEvent{CandidateID: candidateID, JobID: jobID}

	interactive, _ := flags.GetBool("interactive")
	if interactive {
		if err := promptFeedback(&ev); err != nil {
			a.logger.Fatal("exiting", zap.Error(err))
		}
	} else {
		outcome, _ := flags.GetString("outcome")
		parsed, err := learning.ParseOutcome(outcome)
		if err != nil {
			a.logger.Fatal("invalid outcome", zap.Error(err))
		}
		ev.Outcome = parsed

		rating, _ := flags.GetFloat64("rating")
		confidence, _ := flags.GetFloat64("confidence")
		if rating >= 0 || confidence > 0 {
			ev.UserFeedback = &learning.UserFeedback{Confidence: confidence}
			if rating >= 0 {
				ev.UserFeedback.Rating = &rating
			}
		}
	}

	ack, err := a.engine.ProvideFeedback(ctx, ev)
	if err != nil {
		a.logger.Fatal("feedback rejected", append(logger.MatchFields(candidateID, jobID), zap.Error(err))...)
	}
	a.logger.Info("feedback recorded",
		zap.String("event_id", ack.EventID),
		zap.Bool("applied", ack.Applied),
		zap.Uint64(logger.FieldWeightsVersion, ack.WeightsVersion),
		zap.Bool("recalibrating", ack.Recalibrating),
		zap.Bool("duplicate", ack.Duplicate),
	)
	if ack.Recalibrating {
		// Close waits for the queued recalibration
		a.logger.Info("recalibrating weights before exit")
	}

	excludeFile, _ := flags.GetString("exclude-file")
	if excludeFile != "" && ev.Outcome == learning.OutcomeRejected {
		if err := excludeRejected(ctx, a, jobID, excludeFile); err != nil {
			a.logger.Fatal("updating exclude file", zap.Error(err))
		}
		a.logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.String(logger.FieldJob, jobID))
	}
}

func excludeRejected(ctx context.Context, a *application, jobID, path string) error {
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	excluded, err := profile.LoadExcludedJobs(path)
	if err != nil {
		return err
	}
	jobs := &profile.Jobs{Items: []*profile.Job{job}}
	excluded.Append(jobs.ToExcluded(profile.ExcludeActorFeedback, string(learning.OutcomeRejected)))
	return excluded.ToFile(path)
}

func promptFeedback(ev *learning.FeedbackEvent) error {
	outcomes := make([]string, 0, 4)
	for _, o := range learning.Outcomes() {
		outcomes = append(outcomes, string(o))
	}

	outcomePrompt := promptui.Select{
		Label: "What happened with this match?",
		Items: outcomes,
	}
	_, selected, err := outcomePrompt.Run()
	if err != nil {
		return err
	}
	ev.Outcome = learning.Outcome(selected)

	validate := func(s string) error {
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("must be between 0 and 1")
		}
		return nil
	}

	ratingPrompt := promptui.Prompt{Label: "Rating of the match (0-1, empty to skip)", Validate: validate}
	rating, err := ratingPrompt.Run()
	if err != nil {
		return err
	}
	if rating == "" {
		return nil
	}

	confidencePrompt := promptui.Prompt{Label: "How sure are you (0-1)", Validate: validate, Default: "0.5"}
	confidence, err := confidencePrompt.Run()
	if err != nil {
		return err
	}

	r, _ := strconv.ParseFloat(rating, 64)
	c, _ := strconv.ParseFloat(confidence, 64)
	ev.UserFeedback = &learning.UserFeedback{Rating: &r, Confidence: c}
	return nil
}
