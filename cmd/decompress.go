package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/profile"
)

var decompressCmd = &cobra.Command{
	Use:   "decompress FILE",
	Short: "Rewrite the child tables of applicants from a JSON file",
	Long: `Reads a JSON array of documents produced by the compress command. Personal and salary
rows are updated in place (surplus rows are deleted); experience rows are deleted and
recreated.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		log := newLogger()

		docs, err := profile.LoadDocuments(args[0])
		if err != nil {
			log.Fatal("loading documents", zap.Error(err), zap.String("file", args[0]))
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if err := confirm(fmt.Sprintf("Overwrite the records of %d applicants", len(docs))); err != nil {
				log.Info("exiting", zap.String("reason", err.Error()))
				return
			}
		}

		s := setup(ctx, false)
		defer s.close()

		report := s.processor.Decompress(ctx, docs)
		if report.Failures > 0 {
			s.logger.Error("decompression finished with failures", zap.Int("failures", report.Failures))
			s.close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(decompressCmd)

	decompressCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func confirm(label string) error {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return errors.New("got no from prompt")
		}
		return err
	}
	return nil
}
