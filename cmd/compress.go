package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/profile"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Export applicants as compressed documents",
	Long: `Prints a JSON array of compressed profiles, each carrying its "Applicant ID". The
output is the input format of the decompress command.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signalContext()
		defer stop()

		s := setup(ctx, false)
		defer s.close()

		applicantID, _ := cmd.Flags().GetString("applicant-id")
		write, _ := cmd.Flags().GetBool("write")
		output, _ := cmd.Flags().GetString("output")

		docs, err := s.processor.Export(ctx, applicantID, write)
		if err != nil {
			s.logger.Error("some applicants were not compressed", zap.Error(err))
		}

		if err := writeDocuments(output, docs); err != nil {
			s.logger.Error("writing documents", zap.Error(err), zap.String("output", output))
			s.close()
			os.Exit(1)
		}

		if output != "" {
			s.logger.Info("documents written", zap.String("output", output), zap.Int("count", len(docs)))
		}
	},
}

func init() {
	rootCmd.AddCommand(compressCmd)

	compressCmd.Flags().StringP("applicant-id", "a", "", "compress only the applicant with this id")
	compressCmd.Flags().BoolP("write", "w", false, "store the compressed json on the applicant rows too")
	compressCmd.Flags().StringP("output", "o", "", "write documents to this file instead of stdout")
}

func writeDocuments(path string, docs []profile.Profile) error {
	data, err := profile.EncodeDocuments(docs)
	if err != nil {
		return err
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
