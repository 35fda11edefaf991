package contract

import (
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// Config holds the configuration for contract commands.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new contract command with all subcommands.
//
// Usage:
//
//	rootCmd.AddCommand(contract.NewCommand(contract.Config{
//	    Logger: lggr,
//	}))
func NewCommand(cfg Config) *cobra.Command {
	cfg.deps()
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Contract artifact commands",
	}

	cmd.AddCommand(
		newInspectCmd(cfg),
		newDeployCmd(cfg),
	)

	return cmd
}
