// Command squealy serves declarative SQL resources as JSON endpoints and
// compiles, validates and tests their definitions.
package main

import (
	"fmt"
	"os"

	"github.com/imgaoyue/squealy/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
