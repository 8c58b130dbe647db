package allocator

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// RuntimeVersion is this build's semantic version, checked against any
// Config.MinCompatVersion supplied by a caller loading a saved
// configuration from an older or newer build.
const RuntimeVersion = "1.0.0"

// checkCompat returns an error if minVersion is set and RuntimeVersion
// does not satisfy it, so a stale saved configuration is rejected with a
// clear message instead of silently misconfiguring the facade.
func checkCompat(minVersion string) error {
	if minVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return fmt.Errorf("framealloc: invalid MinCompatVersion %q: %w", minVersion, err)
	}

	runtime, err := semver.NewVersion(RuntimeVersion)
	if err != nil {
		return fmt.Errorf("framealloc: invalid RuntimeVersion %q: %w", RuntimeVersion, err)
	}

	if !constraint.Check(runtime) {
		return fmt.Errorf("framealloc: this build (%s) does not satisfy the configuration's minimum compatible version (%s)", RuntimeVersion, minVersion)
	}

	return nil
}
