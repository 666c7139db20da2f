package main

import (
	"fmt"
	"os"

	"github.com/kirillkom/document-intelligence/cmd/docintel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
