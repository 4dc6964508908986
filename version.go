package ota

import "runtime/debug"

var (
	// Version is set at build time with -ldflags.
	Version = "0.0.0"
	// Prerelease is set at build time with -ldflags.
	Prerelease = ""
)

// SemVer returns the semantic version of ota as built
// from Version, Prerelease and the VCS revision, if any.
func SemVer() string {
	semver := Version

	if Prerelease != "" {
		semver = semver + "-" + Prerelease
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			if setting.Key == "vcs.revision" {
				revision := setting.Value
				if len(revision) > 7 {
					revision = revision[:7]
				}
				semver = semver + "+" + revision
				break
			}
		}
	}

	return semver
}
