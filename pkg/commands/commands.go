// Package commands provides the CLI command groups of the harness.
//
// There are two ways to use commands from this package:
//
// 1. Via the Commands factory:
//
//	cmds := commands.New(lggr)
//	app.AddCommand(cmds.Contract())
//
// 2. Via direct package imports, to inject dependencies in tests:
//
//	import "github.com/smartcontractkit/chainlink-contract-harness/pkg/commands/contract"
//
//	app.AddCommand(contract.NewCommand(contract.Config{
//	    Logger: lggr,
//	    Deps:   contract.Deps{NewSession: fakeSession},
//	}))
package commands

import (
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-contract-harness/pkg/commands/contract"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// Commands creates CLI commands sharing one logger.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Contract creates the contract command group: inspect and deploy.
func (c *Commands) Contract() *cobra.Command {
	return contract.NewCommand(contract.Config{Logger: c.lggr})
}

// Root creates the root command of the harness CLI with every command group attached.
func (c *Commands) Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "harness",
		Short:         "Deploy and inspect compiled contracts on ephemeral networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(c.Contract())

	return root
}
