package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/util"
)

var genpassLength int

var genpassCmd = &cobra.Command{
	Use:   "genpass",
	Short: "Generate a cryptographically random password for use with --encrypt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := util.GenPassword(genpassLength)
		if err != nil {
			return err
		}
		fmt.Println(pw)
		fmt.Fprintf(cmd.ErrOrStderr(), "entropy: ~%.1f bits\n", util.ShannonEntropyBits(pw))
		return nil
	},
}

func init() {
	genpassCmd.Flags().IntVar(&genpassLength, "length", util.GeneratedPasswordLength, "password length")
}
