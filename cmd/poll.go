package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Feed queued feedback events from the inbox into the learning loop",
	Run: func(cmd *cobra.Command, _ []string) {
		poll(cmd)
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().Bool("once", false, "drain the inbox and exit instead of polling until interrupted")
}

func poll(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := setup(ctx)
	defer a.Close()

	if once, _ := cmd.Flags().GetBool("once"); once {
		n, err := a.engine.DrainFeedback(ctx, a.store)
		if err != nil {
			a.logger.Fatal("draining feedback inbox", zap.Int("handled", n), zap.Error(err))
		}
		a.logger.Info("feedback inbox drained", zap.Int("handled", n))
		return
	}

	a.logger.Info("polling feedback inbox", zap.Duration("interval", a.config.PollInterval))
	if err := a.engine.PollFeedback(ctx, a.store, a.config.PollInterval); err != nil {
		a.logger.Fatal("polling feedback inbox", zap.Error(err))
	}
	a.logger.Info("exiting", zap.String("reason", "interrupted"))
}
