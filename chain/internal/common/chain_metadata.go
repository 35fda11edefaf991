package common //nolint:revive // var-naming: This is an internal package for common code that is shared between chains.

import (
	"fmt"
	"math/big"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ChainMetadata resolves the static details of a network from its chain selector.
type ChainMetadata struct {
	Selector uint64
}

// ChainSelector returns the chain selector of the network
func (c ChainMetadata) ChainSelector() uint64 {
	return c.Selector
}

// String returns the network name and selector "<name> (<selector>)"
func (c ChainMetadata) String() string {
	details, err := c.details()
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%s (%d)", details.ChainName, c.Selector)
}

// Name returns the name of the network, falling back to the selector when it has no name.
func (c ChainMetadata) Name() string {
	details, err := c.details()
	if err != nil {
		return ""
	}
	if details.ChainName == "" {
		return fmt.Sprintf("%d", c.Selector)
	}

	return details.ChainName
}

// Family returns the family of the network
func (c ChainMetadata) Family() string {
	family, err := chainsel.GetSelectorFamily(c.Selector)
	if err != nil {
		return ""
	}

	return family
}

// EVMChainID returns the EVM chain id of the network. It fails for selectors of other families.
func (c ChainMetadata) EVMChainID() (*big.Int, error) {
	family, err := chainsel.GetSelectorFamily(c.Selector)
	if err != nil {
		return nil, err
	}
	if family != chainsel.FamilyEVM {
		return nil, fmt.Errorf("chain selector %d belongs to the %s family, expected %s",
			c.Selector, family, chainsel.FamilyEVM,
		)
	}

	id, err := chainsel.GetChainIDFromSelector(c.Selector)
	if err != nil {
		return nil, err
	}

	chainID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse chain ID %q of selector %d", id, c.Selector)
	}

	return chainID, nil
}

func (c ChainMetadata) details() (chainsel.ChainDetails, error) {
	id, err := chainsel.GetChainIDFromSelector(c.Selector)
	if err != nil {
		return chainsel.ChainDetails{}, err
	}
	family, err := chainsel.GetSelectorFamily(c.Selector)
	if err != nil {
		return chainsel.ChainDetails{}, err
	}

	return chainsel.GetChainDetailsByChainIDAndFamily(id, family)
}
