// Package version holds build metadata injected at link time.
package version

// These variables are populated via -ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/bdobrica/Cinematic/common/version.Version=v0.3.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
