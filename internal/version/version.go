// Package version reports the photorelay build.
//
// Release builds set Version and Commit with ldflags:
//
//	go build -ldflags="-X github.com/muurk/photorelay/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/photorelay/internal/version.Commit=abc123" ./cmd/photorelay
//
// Otherwise they come from the module and VCS stamps in the binary's build
// info, and finally fall back to "dev" and "unknown".
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// Version is the release version, e.g. v1.2.3
	Version = ""
	// Commit is the short git revision
	Commit = ""
)

const shortRevision = 7

func init() {
	info, _ := debug.ReadBuildInfo()
	Version, Commit = resolve(Version, Commit, info)
}

// resolve fills in whichever of version and commit is empty from info.
// info may be nil.
func resolve(version, commit string, info *debug.BuildInfo) (string, string) {
	if info != nil {
		// go install module@vX.Y.Z stamps the module version
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}

		settings := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}

		if rev := settings["vcs.revision"]; commit == "" && rev != "" {
			if len(rev) > shortRevision {
				rev = rev[:shortRevision]
			}
			if settings["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			commit = rev
		}

		if version == "" {
			if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
				version = "dev-" + t.UTC().Format("20060102")
			}
		}
	}

	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	return version, commit
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent by the client on the upgrade request
func UserAgent() string {
	return "photorelay/" + Version
}
