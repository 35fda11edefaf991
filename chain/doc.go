/*
Package chain defines how ephemeral networks are provisioned for a test session.

# Overview

A Provider starts an isolated single-node network, creates the identities requested by a
funding.Config and credits each of them before handing the network back to the caller:

	type Provider interface {
		Name() string
		ChainSelector() uint64
		Provision(ctx context.Context, cfg funding.Config) (*evm.Network, []evm.Identity, error)
	}

Two providers are available in the chain/evm/provider package:

 1. SimNetworkProvider - an in-process go-ethereum simulated backend. Fast, needs no Docker and is
    the default.
 2. CTFAnvilNetworkProvider - an Anvil node running in a Docker container started through the
    Chainlink Testing Framework.

# Usage

	p := provider.NewSimNetworkProvider(provider.SimNetworkProviderConfig{})

	network, identities, err := p.Provision(ctx, funding.Config{
		Identities:       1,
		CoinsPerIdentity: 1,
		AmountPerCoin:    1_000_000_000,
	})
	if err != nil {
		return err // errors.Is(err, chain.ErrProvision)
	}
	defer network.Close(context.Background())

# Ownership

The returned *evm.Network owns every resource acquired by the provider. Closing it stops the
backend or terminates the container, and cancels all contexts bound to it. A failed Provision
releases whatever it had acquired before returning.
*/
package chain
