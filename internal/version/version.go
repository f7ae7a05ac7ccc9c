// Package version models the worker version vector exchanged with the account
// service.
//
// The account service compares versions; this module only carries them. Parse
// accepts the usual semantic version spellings ("0.6.2", "v0.6.2") so config
// files and CLI flags can stay human friendly.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Vector is the structured version identifier sent on claim, handshake, and
// lifecycle calls.
type Vector struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Parse converts a semantic version string into a Vector.
func Parse(value string) (Vector, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Vector{}, fmt.Errorf("version is required")
	}
	parsed, err := semver.NewVersion(value)
	if err != nil {
		return Vector{}, fmt.Errorf("parse version %q: %w", value, err)
	}
	return Vector{
		Major: int(parsed.Major()),
		Minor: int(parsed.Minor()),
		Patch: int(parsed.Patch()),
	}, nil
}

// MustParse is Parse for constants known at build time.
func MustParse(value string) Vector {
	v, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the vector as major.minor.patch.
func (v Vector) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether no component was set.
func (v Vector) IsZero() bool {
	return v == Vector{}
}
