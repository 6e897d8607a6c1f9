package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/coordinator"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/kdf"
	"github.com/vaultkeep/vaultkeep/internal/target"
)

var (
	runDestination string
	runIncremental bool
	runCodec       string
	runLevel       int
	runEncrypt     bool
	runPasswordEnv bool
	runDryRun      bool
	runWorkers     int
	runPriority    string
	runCategory    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture a full or incremental backup of the registered targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := targetRegistry()
		if err != nil {
			return err
		}
		if runDestination == "" {
			return fmt.Errorf("--destination is required")
		}

		codecKind, err := codec.ParseKind(runCodec)
		if err != nil {
			return err
		}

		mode := integrity.KindFull
		if runIncremental {
			mode = integrity.KindIncremental
		}

		var priority target.Priority
		if runPriority != "" {
			priority, err = target.ParsePriority(runPriority)
			if err != nil {
				return err
			}
		}

		var password []byte
		if runEncrypt {
			password, err = ResolvePassword(false, false)
			if err != nil {
				return err
			}
			// Advisory only: a weak password warns and proceeds.
			for _, w := range kdf.CheckPasswordStrength(string(password)) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
			}
		}

		c := coordinator.New(reg, historySink())
		reporter := NewReporter(false)
		globalReporter = reporter
		defer func() { globalReporter = nil }()

		reporter.SetStatus("running")
		startedAt := time.Now()
		result, err := c.Run(coordinator.Options{
			DestinationRoot: runDestination,
			Mode:            mode,
			Codec:           codecKind,
			Level:           runLevel,
			Encrypt:         runEncrypt,
			Password:        password,
			DryRun:          runDryRun,
			Workers:         runWorkers,
			PriorityFilter:  priority,
			CategoryFilter:  runCategory,
			OnProgress: func(filesDone, filesTotal int, bytesDone, bytesTotal int64) {
				reporter.SetByteProgress(bytesDone, bytesTotal, startedAt)
				reporter.SetStatus(fmt.Sprintf("%d/%d files", filesDone, filesTotal))
				reporter.Update()
			},
		})
		reporter.Finish()
		if err != nil {
			return err
		}

		if runDryRun {
			reporter.PrintSuccess("dry run: %d files, %d bytes would be written", result.Summary.FilesTotal, result.Summary.BytesTotal)
			return nil
		}

		reporter.PrintSuccess("run %s complete: %d/%d files ok, %d bytes, %d skipped (unchanged)",
			result.RunID, result.Summary.FilesOK, result.Summary.FilesTotal, result.Summary.BytesTotal, result.Summary.FilesSkipped)
		if len(result.Summary.Errors) > 0 {
			for _, e := range result.Summary.Errors {
				reporter.PrintError("%s: %v", e.Path, e.Kind)
			}
			return fmt.Errorf("%d files failed", len(result.Summary.Errors))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDestination, "destination", "", "backup destination root")
	runCmd.Flags().BoolVar(&runIncremental, "incremental", false, "capture only what changed since the last run (downgrades to full with no prior run)")
	runCmd.Flags().StringVar(&runCodec, "codec", "none", "compression codec: none, zstd, or gzip")
	runCmd.Flags().IntVar(&runLevel, "level", 0, "codec compression level (0 = codec default)")
	runCmd.Flags().BoolVar(&runEncrypt, "encrypt", false, "encrypt every captured file with AES-256-GCM")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "report what would be written without writing anything")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "worker pool size (0 = number of CPUs)")
	runCmd.Flags().StringVar(&runPriority, "priority", "", "restrict to targets of this priority")
	runCmd.Flags().StringVar(&runCategory, "category", "", "restrict to targets of this category")
}
