package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/quellsec/quell/config"
	"github.com/quellsec/quell/runner"
	"github.com/quellsec/quell/types"
)

var (
	version = "0.1.0"

	configPath string
	cveID      string

	rootCmd = &cobra.Command{
		Use:   "quell",
		Short: "Defensive Action Orchestrator",
		Long: `Quell - Defensive Action Orchestrator

Quell runs one of four defensive actions against the local host: patch,
isolate, shutdown, or status. Each run writes a status token, an audit
journal, and a timestamped report that the invoking dispatcher reads back.`,
		Version: version,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Quell {{.Version}} - Defensive Action Orchestrator
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (defaults apply when unset)")
	rootCmd.PersistentFlags().StringVar(&cveID, "cve", "", "CVE identifier for audit correlation (or CVE_ID env var)")
}

// resolveConfig loads the config file or falls back to built-in defaults.
func resolveConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// resolveCVE prefers the flag, then the CVE_ID environment variable the
// dispatcher sets.
func resolveCVE() string {
	if cveID != "" {
		return cveID
	}
	return os.Getenv("CVE_ID")
}

// executeAction runs one action kind under a signal-aware actor group.
// SIGINT/SIGTERM cancels the action context; for shutdown that aborts the
// countdown before the halt.
func executeAction(kind types.ActionKind) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, kind, resolveCVE())
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	g.Add(func() error {
		_, err := r.Run(ctx, kind)
		return err
	}, func(error) {
		cancel()
	})

	if err := g.Run(); err != nil {
		if _, ok := err.(run.SignalError); ok {
			return fmt.Errorf("interrupted before completion")
		}
		if err == context.Canceled {
			return nil
		}
		return err
	}
	return nil
}
