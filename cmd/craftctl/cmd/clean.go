package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/step"
)

var cleanStepFlag string

var cleanCmd = &cobra.Command{
	Use:   "clean [parts...]",
	Short: "Remove persisted state for the named parts (or all parts) from a step onward",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := step.Parse(cleanStepFlag)
		if err != nil {
			return err
		}

		workDir, err := os.Getwd()
		if err != nil {
			return err
		}

		m, _, err := buildManager(workDir)
		if err != nil {
			return err
		}
		return m.Clean(cmd.Context(), target, args)
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanStepFlag, "step", "pull", "Step to clean from (pull/build/stage/prime); clears it and every later step")
	rootCmd.AddCommand(cleanCmd)
}
