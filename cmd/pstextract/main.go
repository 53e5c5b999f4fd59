// Command pstextract extracts mail, contacts, appointments and journal
// entries from a PST archive onto the local filesystem. Grounded on the
// teacher's own cmd/pst-import-cli/main.go: a thin main() that parses
// flags and delegates everything else to an internal package.
package main

import (
	"fmt"
	"os"

	"github.com/mxguardian/pst-extract/internal/cliapp"
)

func main() {
	app := cliapp.NewApp(version)
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cliapp.ExitCode(err))
}

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"
