package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/matching"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

const (
	PromptPrint               = "Print recommendations"
	PromptReportByCompany     = "Report by company"
	PromptAppendToExcludeFile = "Append all jobs to exclude file"
	PromptToFile              = "Dump recommendations to file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var recommendCmd = &cobra.Command{
	Use:   "recommend <candidate-id>",
	Short: "Rank recent jobs for a candidate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		recommend(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().IntP("count", "n", 10, "number of recommendations")
	recommendCmd.Flags().Float64("diversity-factor", -1, "max share of results one company or category may hold (default from config)")
	recommendCmd.Flags().StringSlice("exclude-company", nil, "company IDs or names to exclude")
	recommendCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")
	recommendCmd.Flags().Bool("exclude-with-feedback", false, "exclude jobs the candidate already gave feedback on")
	recommendCmd.Flags().Bool("remote-only", false, "only remote jobs")
	recommendCmd.Flags().StringSlice("location", nil, "acceptable cities or countries for on-site jobs")
	recommendCmd.Flags().Int("max-age-hours", 0, "ignore jobs posted earlier than this")
	recommendCmd.Flags().Bool("report", false, "print a report grouped by company instead of full results")
	recommendCmd.Flags().BoolP("interactive", "i", false, "choose what to do with the results")
}

func recommend(cmd *cobra.Command, candidateID string) {
	ctx := context.Background()
	a := setup(ctx)
	defer a.Close()

	flags := cmd.Flags()
	opts := matching.RecommendOptions{}
	opts.Count, _ = flags.GetInt("count")
	if factor, _ := flags.GetFloat64("diversity-factor"); factor >= 0 {
		opts.DiversityFactor = &factor
	}
	opts.Criteria.ExcludeCompanies, _ = flags.GetStringSlice("exclude-company")
	opts.Criteria.ExcludeFile, _ = flags.GetString("exclude-file")
	opts.Criteria.ExcludeWithFeedback, _ = flags.GetBool("exclude-with-feedback")
	opts.Criteria.RemoteOnly, _ = flags.GetBool("remote-only")
	opts.Criteria.Locations, _ = flags.GetStringSlice("location")
	opts.Criteria.MaxAgeHours, _ = flags.GetInt("max-age-hours")

	recs, err := a.engine.GetRecommendations(ctx, candidateID, opts)
	if err != nil {
		a.logger.Fatal("getting recommendations", zap.Error(err))
	}

	if len(recs.Recommendations) == 0 {
		a.logger.Info("exiting", zap.String("reason", "no jobs left after filters"))
		return
	}

	report, _ := flags.GetBool("report")
	interactive, _ := flags.GetBool("interactive")

	if !interactive {
		action := PromptPrint
		if report {
			action = PromptReportByCompany
		}
		if err := handleAction(action, a.logger, recs, opts.Criteria.ExcludeFile); err != nil {
			a.logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	items := []string{PromptPrint, PromptReportByCompany, PromptToFile}
	if opts.Criteria.ExcludeFile != "" {
		items = append(items, PromptAppendToExcludeFile)
	}
	prompt := promptui.Select{
		Label: "Procced?",
		Items: append(items, PromptExit),
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			a.logger.Fatal("exiting", zap.Error(err))
		}
		if err := handleAction(action, a.logger, recs, opts.Criteria.ExcludeFile); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			a.logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, l *zap.Logger, recs *matching.Recommendations, excludeFile string) error {
	switch action {
	case PromptExit:
		l.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptPrint:
		return printJSON(recs)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(recs.Jobs().ReportByCompany(), "", "  ")
		l.Info(string(pretty), zap.Int("jobs count", len(recs.Recommendations)))
		return nil
	case PromptToFile:
		filename, err := recs.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		l.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excluded, err := profile.LoadExcludedJobs(excludeFile)
		if err != nil {
			return err
		}
		excluded.Append(recs.Jobs().ToExcluded(profile.ExcludeActorUser, "excluded from recommendations"))
		if err := excluded.ToFile(excludeFile); err != nil {
			return err
		}
		l.Info("appended to exclude file", zap.String("filename", excludeFile))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
