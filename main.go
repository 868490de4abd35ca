/*
Command-line daemon managing mount lifecycle of emulated per-user
storage volumes.

Usage:

	$ vold [<flags>] <subcommand> [<args> ...]

Use 'vold help' to see more details.
*/
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/penguin-xe/android-system-vold/cli"
)

func main() {
	kingpin.MustParse(cli.App().Parse(os.Args[1:]))
}
