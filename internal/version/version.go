package version

import "fmt"

// Populated at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the full build identity for the version command.
func String() string {
	return fmt.Sprintf("drainaudit %s (commit %s, built %s)", Version, Commit, BuildDate)
}
