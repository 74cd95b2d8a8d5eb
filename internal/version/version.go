// Package version exposes the build version stamped via
// -ldflags "-X github.com/dadav/ticktick/internal/version.version=...".
package version

var version = "dev"

// Get returns the stamped version, or "dev" for untagged builds.
func Get() string {
	return version
}
