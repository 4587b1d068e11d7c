package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/step"
)

var primeCmd = &cobra.Command{
	Use:   "prime [parts...]",
	Short: "Prime the named parts (or all parts) into the final payload directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToStep(cmd, step.Prime, args)
	},
}

func init() {
	addPlanOnlyFlag(primeCmd)
	rootCmd.AddCommand(primeCmd)
}
