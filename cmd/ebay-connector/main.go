// Package main is the entry point for the ebay-connector service.
package main

import (
	"os"

	"github.com/donaldgifford/ebay-connector/cmd/ebay-connector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
