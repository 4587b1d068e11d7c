package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/step"
)

var stageCmd = &cobra.Command{
	Use:   "stage [parts...]",
	Short: "Stage the named parts (or all parts) into the shared stage directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToStep(cmd, step.Stage, args)
	},
}

func init() {
	addPlanOnlyFlag(stageCmd)
	rootCmd.AddCommand(stageCmd)
}
