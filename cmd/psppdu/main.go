// Command psppdu is the CLI client for libpspproxy.
package main

import (
	"github.com/PSPReverse/libpspproxy/cmd/psppdu/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.Exit("%v", err)
	}
}
