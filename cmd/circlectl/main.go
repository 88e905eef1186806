// Package main is the entry point for the circlectl binary.
package main

import (
	"os"

	cli "circle-core/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
