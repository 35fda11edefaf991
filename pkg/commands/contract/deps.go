// Package contract provides the CLI commands that inspect and deploy contract artifacts.
package contract

import (
	"context"
	"fmt"
	"os"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/config"
	"github.com/smartcontractkit/chainlink-contract-harness/harness"
)

// ArtifactLoaderFunc loads an artifact.
type ArtifactLoaderFunc func(src artifact.Source) (*artifact.Descriptor, error)

// ConfigLoaderFunc loads the harness configuration from the file at path and the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// SessionFunc starts a harness session.
type SessionFunc func(ctx context.Context, opts ...harness.Option) (*harness.Session, error)

// Deps holds the injectable dependencies for contract commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ArtifactLoader loads the artifact inspected by the inspect command.
	// Default: artifact.Load
	ArtifactLoader ArtifactLoaderFunc

	// ConfigLoader loads the configuration of the deploy command.
	// Default: loadConfig
	ConfigLoader ConfigLoaderFunc

	// NewSession runs the deployment of the deploy command.
	// Default: harness.New
	NewSession SessionFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ArtifactLoader == nil {
		d.ArtifactLoader = artifact.Load
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = loadConfig
	}
	if d.NewSession == nil {
		d.NewSession = harness.New
	}
}

// loadConfig loads the config file at path with HARNESS_* overrides applied. Unlike config.Load,
// a missing file is an error: the path was given explicitly.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	return config.Load(path)
}
