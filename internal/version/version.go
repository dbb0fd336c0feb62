// Package appversion exposes the build metadata stamped into tacgo
// binaries. Release builds stamp Version, GitCommit, and BuildDate with
// -ldflags -X; a plain `go build` leaves them at their defaults, in which
// case Get falls back to the module version the toolchain recorded.
package appversion

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the semantic version (e.g., "v0.1.0" or "dev").
var Version = "dev"

// GitCommit is the short git commit hash at build time.
var GitCommit = "unknown"

// BuildDate is the RFC 3339 build timestamp.
var BuildDate = "unknown"

// Info bundles the stamped metadata with the toolchain that produced the
// binary.
type Info struct {
	Binary    string
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// Get returns the build metadata for the named binary. When no version was
// stamped, the module version recorded by the toolchain is used instead,
// so `go install ...@v1.2.3` binaries still report something useful.
func Get(binary string) Info {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}

	return Info{
		Binary:    binary,
		Version:   v,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// Full renders the info as the multi-line block the CLIs print.
func (i Info) Full() string {
	return fmt.Sprintf("%s %s\n  commit:  %s\n  built:   %s\n  go:      %s",
		i.Binary, i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
