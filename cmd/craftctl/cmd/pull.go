package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/step"
)

var pullCmd = &cobra.Command{
	Use:   "pull [parts...]",
	Short: "Pull source for the named parts (or all parts)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToStep(cmd, step.Pull, args)
	},
}

func init() {
	addPlanOnlyFlag(pullCmd)
	rootCmd.AddCommand(pullCmd)
}
