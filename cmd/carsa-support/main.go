package main

import (
	"fmt"
	"os"

	"carsa.local/complaints/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "carsa-support: %v\n", err)
		os.Exit(1)
	}
}
