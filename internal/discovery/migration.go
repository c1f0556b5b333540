package discovery

import (
	"fmt"

	"pglauncher/internal/platform"
)

// MessageFor returns the rename notice for a binary found through id.
// Package-based identities are told to swap the dependency; everything else
// is told to install the renamed binary.
func MessageFor(id Identity) string {
	legacy, current := platform.LegacyDistribution, platform.CurrentDistribution
	if id.Packaged() {
		return fmt.Sprintf(
			"The %s package has been renamed to %s. Replace it in your package.json (found via %s) to keep receiving updates.",
			legacy.Package, current.Package, id.Label(),
		)
	}
	return fmt.Sprintf(
		"The %s binary has been renamed to %s. Install %s in place of the binary found via %s to keep receiving updates.",
		legacy.BinaryName, current.BinaryName, current.BinaryName, id.Label(),
	)
}

// MigrationNotice returns the rename notice when r resolved to the legacy
// binary, and false otherwise.
func MigrationNotice(cfg platform.Config, r FindResult) (string, bool) {
	if !cfg.IsLegacyBinary(r.Binary) {
		return "", false
	}
	return MessageFor(r.Identity), true
}
