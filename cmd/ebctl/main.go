// Package main is the entry point for the ebctl CLI client.
package main

import (
	"github.com/donaldgifford/ebay-connector/cmd/ebctl/cmd"
)

func main() {
	cmd.Execute()
}
