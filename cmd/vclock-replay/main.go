// vclock-replay runs scenario files on a virtual clock and prints the order
// and virtual time at which each event ran.
//
// Usage:
//
//	vclock-replay [--json] replay [--metrics] FILE
//	vclock-replay validate FILE...
//
// LOG_LEVEL and LOG_FORMAT configure the log written to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/noodlebox/vclock/internal/cli"
)

// version is set with ldflags at build time.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
