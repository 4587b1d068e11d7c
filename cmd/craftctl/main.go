package main

import (
	"os"

	"github.com/mensylisir/craftkit/cmd/craftctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
