// Package main provides the entry point for the shoal CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tidemark-io/shoal/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:          "shoal",
		Short:        "A sharded in-memory cache with TTLs, eviction, and pluggable backing stores",
		SilenceUsage: true,
	}
)

func main() {
	charm := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	logger = slog.New(charm)

	var err error
	cfg, err = config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cobra.OnInitialize(func() {
		if cfg.ServerDebugEnabled() {
			charm.SetLevel(log.DebugLevel)
		}
	})

	if len(CommitSHA) > 7 {
		CommitSHA = CommitSHA[:7]
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	if CommitSHA != "" {
		rootCmd.Version += " (" + CommitSHA + ")"
	}

	if err := bindServeFlags(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	bindBenchFlags()

	rootCmd.AddCommand(serveCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
