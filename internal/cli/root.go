// Package cli provides command-line interface functionality for vaultkeep.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/history"
	"github.com/vaultkeep/vaultkeep/internal/registry"
	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// Version is set by main.go
var Version = "dev"

// configDir holds the target registry and history log; overridable with
// --config-dir for tests and multi-profile setups.
var configDir string

// verbose enables debug-level logging to stderr for the duration of a run.
var verbose bool

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "vaultkeep",
	Short: "Local filesystem backup engine",
	Long: `vaultkeep captures designated files and directories into
timestamped, content-verified archives, with optional stream compression,
symmetric encryption, and incremental (differential-by-hash) capture.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			vaultlog.EnableDebugLogging()
		}
	},
}

// Global reporter for signal handling
var globalReporter *Reporter

// Execute runs the CLI application, returning the process exit code.
func Execute(version string) int {
	Version = version
	rootCmd.Version = version

	// Set up signal handling for graceful cancellation
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		if globalReporter != nil {
			globalReporter.Cancel()
			fmt.Fprintln(os.Stderr, "\nCancelling...")
		} else {
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	home, err := os.UserHomeDir()
	defaultDir := ".vaultkeep"
	if err == nil {
		defaultDir = filepath.Join(home, ".vaultkeep")
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultDir, "directory holding the target registry and history log")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(genpassCmd)
}

func targetRegistry() (target.Registry, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return registry.New(filepath.Join(configDir, "targets.yaml")), nil
}

func historySink() history.Sink {
	return history.NewJSONLSink(filepath.Join(configDir, "history.jsonl"))
}
