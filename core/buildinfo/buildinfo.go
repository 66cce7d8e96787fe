// Package buildinfo carries version metadata stamped at link time:
//
//	-ldflags "-X github.com/m3rciful/shopintake/core/buildinfo.Version=v1.2.3
//	          -X github.com/m3rciful/shopintake/core/buildinfo.Commit=abcdef0
//	          -X github.com/m3rciful/shopintake/core/buildinfo.Date=2025-08-30T12:00:00Z"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func init() {
	if Commit != "" {
		return
	}
	Commit = "local"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				Commit = s.Value[:7]
			} else if s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String renders the build metadata on one line.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
