// Package artifact loads compiled contract artifacts from the output directory of a contract
// build tool.
//
// An artifact is made of two files that must come from the same build: the deployable binary
// and its interface description (ABI). Two directory layouts are understood:
//
//   - LayoutFlat: <dir>/<name>.bin holds the hex encoded creation bytecode and
//     <dir>/<name>-abi.json holds the ABI.
//   - LayoutFoundry: <dir>/<file>.sol/<contract>.json holds both, as written by forge build.
//
// Loading never compiles anything and has no side effects besides reading the files.
package artifact

import (
	"errors"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	// ErrArtifactNotFound is returned when the binary or the interface description is absent.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrArtifactMalformed is returned when the binary cannot be decoded, the interface
	// description cannot be parsed, or the two do not describe the same contract.
	ErrArtifactMalformed = errors.New("artifact malformed")
)

// Layout identifies how a build tool lays out its output directory.
type Layout string

const (
	LayoutFlat    Layout = "flat"
	LayoutFoundry Layout = "foundry"
)

// DefaultVersion is the version recorded for artifacts that do not declare one.
const DefaultVersion = "1.0.0"

// Source locates an artifact in a build output directory.
type Source struct {
	// Dir is the build output directory, e.g. "out/debug" or "out".
	Dir string
	// Name is the artifact name. For LayoutFoundry it is either "<Contract>" (the source file is
	// assumed to be "<Contract>.sol") or "<File>.sol:<Contract>".
	Name string
	// Optional: Layout defaults to LayoutFlat.
	Layout Layout
	// Optional: Version is a semver string recorded with deployments. Defaults to DefaultVersion.
	Version string
	// Optional: SkipConsistencyCheck disables the check that every ABI method is dispatched by
	// the binary. Only useful for proxies and other contracts that route calls dynamically.
	SkipConsistencyCheck bool
}

// Descriptor is a loaded artifact. It is immutable once returned by Load.
type Descriptor struct {
	Name     string
	Version  semver.Version
	Bytecode []byte
	ABI      abi.ABI
	RawABI   []byte

	// Paths the artifact was read from. BinPath and ABIPath are equal for LayoutFoundry.
	BinPath string
	ABIPath string
}

// Methods returns the callable methods of the artifact sorted by name.
func (d *Descriptor) Methods() []abi.Method {
	methods := make([]abi.Method, 0, len(d.ABI.Methods))
	for _, m := range d.ABI.Methods {
		methods = append(methods, m)
	}

	slices.SortFunc(methods, func(a, b abi.Method) int {
		return strings.Compare(a.Name, b.Name)
	})

	return methods
}

// String returns "<name> <version>".
func (d *Descriptor) String() string {
	return d.Name + " " + d.Version.String()
}
