package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/step"
)

var buildCmd = &cobra.Command{
	Use:   "build [parts...]",
	Short: "Build the named parts (or all parts), pulling first if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToStep(cmd, step.Build, args)
	},
}

func init() {
	addPlanOnlyFlag(buildCmd)
	rootCmd.AddCommand(buildCmd)
}
