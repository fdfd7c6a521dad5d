// Command circuitcheck runs Logisim circuit test suites.
package main

import (
	"os"

	"github.com/tebeka/atexit"

	"github.com/roach88/circuitcheck/internal/cli"
)

func main() {
	// atexit.Exit runs the handlers that terminate simulators still alive.
	atexit.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
