package lmdbx

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// Version returns the version string of this binding.
func Version() string {
	return fmt.Sprintf("lmdbx %d.%d.%d", Major, Minor, Patch)
}

// EngineVersion returns the version string of the underlying MDBX engine.
func EngineVersion() string {
	return fmt.Sprintf("mdbx %d.%d", mdbx.Major, mdbx.Minor)
}
