package cmd

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Load candidates, jobs and queued feedback from YAML or JSON files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importFiles(args)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importFiles(paths []string) {
	ctx := context.Background()
	l := newLogger()
	_, st := openStore(l)
	defer st.Close()

	for _, path := range paths {
		stats, err := st.ImportFile(ctx, path)
		if err != nil {
			l.Fatal("importing file", zap.String("path", path), zap.Error(err))
		}
		l.Info("imported",
			zap.String("path", path),
			zap.String("candidates", humanize.Comma(int64(stats.Candidates))),
			zap.String("jobs", humanize.Comma(int64(stats.Jobs))),
			zap.String("feedback", humanize.Comma(int64(stats.Feedback))),
		)
	}
}
