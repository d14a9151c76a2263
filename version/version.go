package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/superchain-oracle/superchain-oracle/version.AppVersion=..."
var (
	AppVersion = "dev"
	GitCommit  = ""
	BuildDate  = ""

	GoVersion = runtime.Version()
	GoArch    = runtime.GOARCH
)

func Version() string {
	commit := GitCommit
	if len(commit) == 0 {
		commit = "unknown"
	}

	date := BuildDate
	if len(date) == 0 {
		date = "unknown"
	}

	return fmt.Sprintf(
		"Version %s (%s)\nCompiled at %s using Go %s (%s)",
		AppVersion,
		commit,
		date,
		GoVersion,
		GoArch,
	)
}
