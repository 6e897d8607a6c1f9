package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/archive"
)

var (
	restoreDestination string
	restoreTo          string
	restoreVerify      bool
	restoreEncrypted   bool
	restorePasswordIn  bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <run-id>",
	Short: "Restore a run (and its incremental chain) into a target directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		if restoreDestination == "" || restoreTo == "" {
			return fmt.Errorf("--destination and --to are required")
		}

		var password []byte
		if restoreEncrypted {
			pw, err := ResolvePassword(restorePasswordIn, false)
			if err != nil {
				return err
			}
			password = pw
		}

		reporter := NewReporter(false)
		globalReporter = reporter
		defer func() { globalReporter = nil }()

		reporter.SetStatus("restoring")
		summary, err := archive.RestoreRun(runID, archive.RestoreOptions{
			DestinationRoot: restoreDestination,
			RestoreTo:       restoreTo,
			Password:        password,
			Verify:          restoreVerify,
			OnProgress: func(filesDone, filesTotal int) {
				reporter.SetProgress(float32(filesDone)/float32(filesTotal), fmt.Sprintf("%d/%d files", filesDone, filesTotal))
				reporter.Update()
			},
		})
		reporter.Finish()
		if err != nil {
			return err
		}

		reporter.PrintSuccess("restore %s complete: %d/%d files ok", runID, summary.FilesOK, summary.FilesTotal)
		if len(summary.Errors) > 0 {
			for _, e := range summary.Errors {
				reporter.PrintError("%s: %v", e.Path, e.Kind)
			}
		}
		if len(summary.IntegrityFailures) > 0 {
			reporter.PrintError("integrity verification failed for %d file(s):", len(summary.IntegrityFailures))
			for _, p := range summary.IntegrityFailures {
				fmt.Printf("  %s\n", p)
			}
			return fmt.Errorf("restore completed with integrity failures")
		}
		if len(summary.Errors) > 0 {
			return fmt.Errorf("%d files failed to restore", len(summary.Errors))
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreDestination, "destination", "", "backup destination root holding the run directories")
	restoreCmd.Flags().StringVar(&restoreTo, "to", "", "directory to restore the tree into")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify", false, "re-hash every restored file against the recorded digest")
	restoreCmd.Flags().BoolVar(&restoreEncrypted, "encrypted", false, "the run was captured with encryption; prompt for its password")
	restoreCmd.Flags().BoolVar(&restorePasswordIn, "password-stdin", false, "read the password from stdin instead of prompting")
}
