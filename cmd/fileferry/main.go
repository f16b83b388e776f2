// FileFerry - copy and move file trees with live progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fileferry/fileferry/internal/cli"
	"github.com/fileferry/fileferry/internal/version"
)

// Version information, overridden by ldflags during release builds.
var (
	Version   = "v1.2.0"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled by the user; the renderer already said so.
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
