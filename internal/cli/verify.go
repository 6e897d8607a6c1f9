package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/archive"
)

var (
	verifyDestination string
	verifyRoot        string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Re-hash a previously restored tree against a run's recorded digests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		if verifyDestination == "" || verifyRoot == "" {
			return fmt.Errorf("--destination and --root are required")
		}

		result, err := archive.VerifyTree(verifyDestination, runID, verifyRoot)
		if err != nil {
			return err
		}

		fmt.Printf("verified %d file(s) against run %s\n", result.FilesChecked, runID)
		for _, p := range result.Missing {
			fmt.Printf("  missing: %s\n", p)
		}
		for _, p := range result.Mismatched {
			fmt.Printf("  mismatch: %s\n", p)
		}
		if len(result.Missing) > 0 || len(result.Mismatched) > 0 {
			return fmt.Errorf("verification failed for %d file(s)", len(result.Missing)+len(result.Mismatched))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDestination, "destination", "", "backup destination root holding the run directories")
	verifyCmd.Flags().StringVar(&verifyRoot, "root", "", "directory whose contents should match the run")
}
