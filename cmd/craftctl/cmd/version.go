package cmd

import (
	"fmt"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Version, Commit and Date are stamped by the release build process.
var Version = "dev"
var Commit = "none"
var Date = "unknown"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of craftctl",
	Long:  `All software has versions. This is craftctl's.`,
	Run: func(cmd *cobra.Command, args []string) {
		figure.NewFigure("craftctl", "", true).Print()
		fmt.Printf("craftctl version: %s\n", Version)
		fmt.Printf("Git Commit: %s\n", Commit)
		fmt.Printf("Build Date: %s\n", Date)
	},
}
