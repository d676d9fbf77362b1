package main

import (
	"os"

	"github.com/massaudit/massaudit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
