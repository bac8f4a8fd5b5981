package app

import (
	"github.com/kart-io/version"
)

// GetVersion returns the git version the binary was built from, used to
// stamp indexed chunks and the startup banner.
func GetVersion() string {
	return version.Get().GitVersion
}

// GetVersionInfo returns the build information served on /version.
func GetVersionInfo() version.Info {
	return version.Get()
}
