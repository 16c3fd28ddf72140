package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Re-evaluate the compressed JSON already stored on applicants",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()

		s := setup(ctx, false)
		defer s.close()

		if _, err := s.processor.Shortlist(ctx); err != nil {
			s.logger.Error("shortlist finished with errors", zap.Error(err))
			s.close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(shortlistCmd)
}
