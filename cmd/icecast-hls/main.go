// Package main is the entry point for the icecast-hls application.
package main

import (
	"os"

	"github.com/icecasthls/icecasthls/cmd/icecast-hls/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
