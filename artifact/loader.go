package artifact

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Load reads the artifact described by src.
//
// Both files are checked for existence before either is parsed, and before the version is, so that
// a missing file is always reported as ErrArtifactNotFound.
func Load(src Source) (*Descriptor, error) {
	src = src.withDefaults()

	if src.Name == "" {
		return nil, fmt.Errorf("%w: artifact name is required", ErrArtifactNotFound)
	}

	var (
		desc *Descriptor
		err  error
	)
	switch src.Layout {
	case LayoutFlat:
		desc, err = loadFlat(src)
	case LayoutFoundry:
		desc, err = loadFoundry(src)
	default:
		return nil, fmt.Errorf("unsupported artifact layout %q", src.Layout)
	}
	if err != nil {
		return nil, err
	}

	version, err := semver.NewVersion(src.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid artifact version %q: %w", ErrArtifactMalformed, src.Version, err)
	}
	desc.Version = *version

	if !src.SkipConsistencyCheck {
		if err := checkConsistency(desc); err != nil {
			return nil, err
		}
	}

	return desc, nil
}

func (s Source) withDefaults() Source {
	if s.Layout == "" {
		s.Layout = LayoutFlat
	}
	if s.Version == "" {
		s.Version = DefaultVersion
	}

	return s
}

// loadFlat reads <dir>/<name>.bin and <dir>/<name>-abi.json.
func loadFlat(src Source) (*Descriptor, error) {
	binPath := filepath.Join(src.Dir, src.Name+".bin")
	abiPath := filepath.Join(src.Dir, src.Name+"-abi.json")

	if err := requireFiles(binPath, abiPath); err != nil {
		return nil, err
	}

	rawBin, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", binPath, err)
	}

	rawABI, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abiPath, err)
	}

	bytecode, err := decodeBytecode(string(rawBin))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMalformed, binPath, err)
	}

	parsed, err := parseABI(rawABI)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMalformed, abiPath, err)
	}

	return &Descriptor{
		Name:     src.Name,
		Bytecode: bytecode,
		ABI:      parsed,
		RawABI:   rawABI,
		BinPath:  binPath,
		ABIPath:  abiPath,
	}, nil
}

// requireFiles returns ErrArtifactNotFound naming every path that does not exist.
func requireFiles(paths ...string) error {
	var missing []string
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, p)
		case err != nil:
			return fmt.Errorf("stat %s: %w", p, err)
		case info.IsDir():
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, strings.Join(missing, ", "))
	}

	return nil
}

// decodeBytecode decodes hex encoded creation bytecode with or without a 0x prefix.
func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if s == "" {
		return nil, errors.New("bytecode is empty")
	}
	// solc leaves __$<hash>$__ placeholders for libraries that still have to be linked
	if strings.Contains(s, "__") {
		return nil, errors.New("bytecode contains unlinked library placeholders")
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}

	return b, nil
}

// rawArgument mirrors the JSON shape of an ABI argument so that type references can be checked
// before go-ethereum resolves them.
type rawArgument struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	InternalType string        `json:"internalType"`
	Components   []rawArgument `json:"components"`
}

type rawEntry struct {
	Type    string        `json:"type"`
	Name    string        `json:"name"`
	Inputs  []rawArgument `json:"inputs"`
	Outputs []rawArgument `json:"outputs"`
}

// parseABI parses an interface description and checks that every referenced type is resolvable.
func parseABI(raw []byte) (abi.ABI, error) {
	var entries []rawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return abi.ABI{}, fmt.Errorf("parse interface description: %w", err)
	}

	for _, e := range entries {
		for _, arg := range slices.Concat(e.Inputs, e.Outputs) {
			if err := checkArgument(e.Name, arg); err != nil {
				return abi.ABI{}, err
			}
		}
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse interface description: %w", err)
	}

	return parsed, nil
}

// checkArgument rejects tuple types whose component types are missing.
func checkArgument(entry string, arg rawArgument) error {
	base := arg.Type
	if i := strings.Index(base, "["); i >= 0 {
		base = base[:i]
	}

	if base == "tuple" {
		if len(arg.Components) == 0 {
			ref := arg.InternalType
			if ref == "" {
				ref = arg.Type
			}

			return fmt.Errorf("%s: argument %q references %s without component types", entry, arg.Name, ref)
		}

		for _, c := range arg.Components {
			if err := checkArgument(entry, c); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkConsistency verifies that the binary dispatches every method of the ABI, which is the
// case only when both come from the same build.
func checkConsistency(d *Descriptor) error {
	missing := MissingSelectors(d.ABI, d.Bytecode)
	if len(missing) > 0 {
		return fmt.Errorf("%w: binary %s does not dispatch %s declared in %s",
			ErrArtifactMalformed, d.BinPath, strings.Join(missing, ", "), d.ABIPath,
		)
	}

	return nil
}
