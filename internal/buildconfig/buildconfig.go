package buildconfig

import "runtime/debug"

// Set with -ldflags "-X github.com/Harshitk-cp/bdi/internal/buildconfig.version=...".
var (
	version = "dev"
	commit  = ""
)

// Version returns the injected version, or the module version recorded by
// the go tool for builds without ldflags.
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// Commit returns the injected commit, falling back to the vcs.revision build
// setting.
func Commit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
