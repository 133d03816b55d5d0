// braid is a git-backed issue tracker with a dependency graph.
package main

import (
	"os"

	"braid/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
