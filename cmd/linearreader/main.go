// Command linearreader serves fast, read-only queries over a local
// Linear.app cache, falling back to the official remote service when the
// local snapshot can't answer a request.
package main

import (
	"fmt"
	"os"

	"github.com/jra3/linear-reader/cmd/linearreader/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
