// Package version exposes build-time identification for mapview binaries.
package version

import "runtime"

// These are overridden at build time via -ldflags, e.g.:
//
//	go build -ldflags "-X github.com/showermat/mapview/pkg/version.Version=1.2.0 \
//	  -X github.com/showermat/mapview/pkg/version.Commit=$(git rev-parse HEAD) \
//	  -X github.com/showermat/mapview/pkg/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the build identification used by health and metrics reporting.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
