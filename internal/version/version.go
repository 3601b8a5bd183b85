// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/MrSnakeDoc/linkvault/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// String is the one-line build banner logged at startup.
func String() string {
	return fmt.Sprintf("linkvault %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
