// Command vaultkeep is the backup engine's command-line entry point.
package main

import (
	"os"

	"github.com/vaultkeep/vaultkeep/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
