package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	foundryConfigFile     = "foundry.toml"
	foundryDefaultProfile = "default"
	foundryDefaultOut     = "out"
)

// foundryArtifact is the subset of a forge build output file read by the loader.
type foundryArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode struct {
		Object string `json:"object"`
	} `json:"bytecode"`
}

// loadFoundry reads <dir>/<file>.sol/<contract>.json.
func loadFoundry(src Source) (*Descriptor, error) {
	file, contract := splitFoundryName(src.Name)
	path := filepath.Join(src.Dir, file, contract+".json")

	if err := requireFiles(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fa foundryArtifact
	if err = json.Unmarshal(raw, &fa); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMalformed, path, err)
	}

	if len(fa.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s: missing abi", ErrArtifactMalformed, path)
	}

	bytecode, err := decodeBytecode(fa.Bytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMalformed, path, err)
	}

	parsed, err := parseABI(fa.ABI)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMalformed, path, err)
	}

	return &Descriptor{
		Name:     contract,
		Bytecode: bytecode,
		ABI:      parsed,
		RawABI:   []byte(fa.ABI),
		BinPath:  path,
		ABIPath:  path,
	}, nil
}

// splitFoundryName splits "File.sol:Contract" into its parts. A bare "Contract" maps to
// "Contract.sol" and "Contract".
func splitFoundryName(name string) (file, contract string) {
	if f, c, ok := strings.Cut(name, ":"); ok {
		return f, c
	}

	return name + ".sol", name
}

// foundryConfig is the subset of foundry.toml read by ResolveDir.
type foundryConfig struct {
	Profile map[string]struct {
		Out string `toml:"out"`
	} `toml:"profile"`
}

// ResolveDir returns the build output directory configured in <root>/foundry.toml for profile.
// Profiles without an "out" key inherit the default profile, which itself defaults to "out".
// An empty profile selects the default profile.
func ResolveDir(root, profile string) (string, error) {
	path := filepath.Join(root, foundryConfigFile)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var cfg foundryConfig
	if err = toml.Unmarshal(raw, &cfg); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	if profile == "" {
		profile = foundryDefaultProfile
	}

	out := cfg.Profile[profile].Out
	if out == "" {
		out = cfg.Profile[foundryDefaultProfile].Out
	}
	if out == "" {
		out = foundryDefaultOut
	}

	if filepath.IsAbs(out) {
		return out, nil
	}

	return filepath.Join(root, out), nil
}
