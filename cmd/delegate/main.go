// delegate rewrites bound formulas into delegated plans and checks them
// against conformance scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/delegate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
