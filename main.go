package main

import (
	"os"

	"github.com/harmony-community/harmony-matcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
