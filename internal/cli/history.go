package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := historySink().List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no history recorded")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-11s %-16s %s  files=%d/%d bytes=%d\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.RunID, r.Kind, r.FilesOK, r.FilesTotal, r.BytesTotal)
			for _, e := range r.Errors {
				fmt.Printf("    error: %s: %s\n", e.Path, e.Kind)
			}
		}
		return nil
	},
}
