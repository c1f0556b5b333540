package release

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is returned for strings that are not semantic versions.
var ErrInvalidVersion = fmt.Errorf("invalid version format")

// canonical turns "1.2.3" or "v1.2.3" into the "v1.2.3" form semver expects.
func canonical(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, strings.TrimPrefix(v, "v"))
	}
	return v, nil
}

// CompareVersions returns -1, 0 or 1 as a is older than, equal to, or newer
// than b. Both may carry an optional leading "v".
func CompareVersions(a, b string) (int, error) {
	ca, err := canonical(a)
	if err != nil {
		return 0, err
	}
	cb, err := canonical(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(ca, cb), nil
}

// TrimV drops a leading "v" from a tag.
func TrimV(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}
