// Package cmd implements the icecast-hls CLI command.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/icecasthls/icecasthls/internal/config"
	"github.com/icecasthls/icecasthls/internal/decoder"
	"github.com/icecasthls/icecasthls/internal/demuxer"
	"github.com/icecasthls/icecasthls/internal/encoder"
	"github.com/icecasthls/icecasthls/internal/filter"
	"github.com/icecasthls/icecasthls/internal/input"
	"github.com/icecasthls/icecasthls/internal/muxer"
	"github.com/icecasthls/icecasthls/internal/observability"
	"github.com/icecasthls/icecasthls/internal/output"
	"github.com/icecasthls/icecasthls/internal/version"
	"github.com/icecasthls/icecasthls/internal/wiring"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var listPlugins bool

// rootCmd is icecast-hls's entire CLI surface: `icecast-hls [-V] [--]
// <config.ini>` (spec §6) — one binary, one required positional
// argument, no subcommands.
var rootCmd = &cobra.Command{
	Use:          "icecast-hls <config.ini>",
	Short:        "Live audio transcoding and HLS/Icecast segmenting pipeline",
	Version:      version.Short(),
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, args []string) error {
		if listPlugins {
			printPlugins()
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("icecast-hls: exactly one config file argument is required")
		}
		return run(args[0])
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&listPlugins, "list-plugins", "V", false, "print version and available plugin names grouped by stage")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printPlugins() {
	fmt.Println(version.String())
	groups := []struct {
		name  string
		names []string
	}{
		{"input", input.Registry.Names()},
		{"demuxer", demuxer.Registry.Names()},
		{"decoder", decoder.Registry.Names()},
		{"filter", filter.Registry.Names()},
		{"encoder", encoder.Registry.Names()},
		{"muxer", muxer.Registry.Names()},
		{"output", output.Registry.Names()},
	}
	for _, g := range groups {
		sort.Strings(g.names)
		fmt.Printf("%s: %s\n", g.name, joinOrNone(g.names))
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// run loads cfg, builds the pipeline, and drives it to completion,
// returning a non-nil error on anything but a clean EOF of every source
// (spec §6's exit-code contract is enforced by main translating this
// into os.Exit(1)).
func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("icecast-hls: %w", err)
	}

	logger := observability.NewLogger(observability.Config{Level: cfg.Options.LogLevel, Format: "text"})
	logger = observability.WithID(logger, ulid.Make().String())
	logger.Info("starting pipeline", "config", path, "sources", len(cfg.Sources), "destinations", len(cfg.Destinations))

	pipeline, err := wiring.Build(cfg)
	if err != nil {
		return fmt.Errorf("icecast-hls: %w", err)
	}
	defer pipeline.Close()

	sigUSR1 := make(chan os.Signal, 1)
	signal.Notify(sigUSR1, syscall.SIGUSR1)
	defer signal.Stop(sigUSR1)
	go func() {
		for range sigUSR1 {
			pipeline.Counters.Dump(os.Stderr)
		}
	}()

	sigTerm := make(chan os.Signal, 1)
	signal.Notify(sigTerm, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigTerm
		logger.Warn("received shutdown signal, cancelling pipeline")
		pipeline.Cancel()
	}()
	defer signal.Stop(sigTerm)

	if err := pipeline.Run(); err != nil {
		logger.Error("pipeline exited with error", "error", err)
		return err
	}
	logger.Info("pipeline exited cleanly")
	return nil
}
