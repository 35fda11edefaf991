package artifact

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ContractType identifies the kind of contract an artifact builds, e.g. "storage".
type ContractType string

func (ct ContractType) String() string {
	return string(ct)
}

// TypeAndVersion is stored with every deployment. It is recorded rather than read from the chain
// since most contracts do not expose it.
type TypeAndVersion struct {
	Type    ContractType   `json:"Type"`
	Version semver.Version `json:"Version"`
}

// NewTypeAndVersion returns a TypeAndVersion.
func NewTypeAndVersion(t ContractType, v semver.Version) TypeAndVersion {
	return TypeAndVersion{Type: t, Version: v}
}

func (tv TypeAndVersion) String() string {
	return fmt.Sprintf("%s %s", tv.Type, tv.Version.String())
}

func (tv TypeAndVersion) Equal(other TypeAndVersion) bool {
	return tv.Type == other.Type && tv.Version.Equal(&other.Version)
}

// TypeAndVersionFromString parses "<type> <version>".
func TypeAndVersionFromString(s string) (TypeAndVersion, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return TypeAndVersion{}, fmt.Errorf("invalid type and version string: %q", s)
	}

	v, err := semver.NewVersion(parts[1])
	if err != nil {
		return TypeAndVersion{}, fmt.Errorf("invalid type and version string %q: %w", s, err)
	}

	return NewTypeAndVersion(ContractType(parts[0]), *v), nil
}

// TypeAndVersion returns the type and version recorded for deployments of the artifact.
func (d *Descriptor) TypeAndVersion() TypeAndVersion {
	return NewTypeAndVersion(ContractType(d.Name), d.Version)
}
