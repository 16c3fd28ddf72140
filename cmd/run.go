package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compress, shortlist and assess applicants",
	Long: `For every applicant (or only --applicant-id) the child records are compressed into
one JSON document stored on the applicant row, the shortlist rules are applied (a lead
row is created for matches) and the LLM assessment is written back.`,
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("applicant-id", "a", "", "process only the applicant with this id")
}

func run(cmd *cobra.Command) {
	ctx, stop := signalContext()
	defer stop()

	s := setup(ctx, true)
	defer s.close()

	applicantID, _ := cmd.Flags().GetString("applicant-id")

	stats, err := s.processor.Run(ctx, applicantID)
	if err != nil {
		s.logger.Error("run finished with errors",
			zap.Error(err),
			zap.Int("lead_failures", stats.LeadFailures),
		)
		s.close()
		os.Exit(1)
	}
}

// signalContext is shared by the commands that walk over applicants.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
