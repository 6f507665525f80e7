// Command ducttape is a thin demonstration harness, not the real CLI
// surface (spec §1/§6 put argument parsing and the workflow DSL's
// surface parser out of scope). It wires a small hand-built fixture
// AST through builder -> unpack -> inputcheck -> version so the core
// packages can be exercised end to end from a single binary, the same
// role cli/cmd/turbo/main.go plays for the teacher's own core.
package main

import (
	"os"

	"github.com/sbeschke/ducttape/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:]))
}
