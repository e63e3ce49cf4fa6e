// Package version exposes the module's build-time version
// information via runtime/debug.
package version

import "runtime/debug"

// GetVersion returns the module version stamped into the binary, or
// "dev" for a local (devel) build.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// GoVersion returns the toolchain version the binary was built with.
func GoVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return info.GoVersion
}
