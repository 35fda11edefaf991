package deploy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
)

// DeployedContract is a contract instance created by Deploy. Each deployment gets its own address,
// which is never reassigned within a network.
type DeployedContract struct {
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	// Fee is the amount in wei paid by the deployer.
	Fee *big.Int

	Deployer evm.Identity
	Network  *evm.Network
	Artifact *artifact.Descriptor

	// RuntimeCode is the code stored at Address right after deployment.
	RuntimeCode []byte
}

// ID returns the checksummed address of the contract.
func (c DeployedContract) ID() string {
	return c.Address.Hex()
}

// TypeAndVersion returns the type and version recorded for the contract.
func (c DeployedContract) TypeAndVersion() artifact.TypeAndVersion {
	if c.Artifact == nil {
		return artifact.TypeAndVersion{}
	}

	return c.Artifact.TypeAndVersion()
}

// String returns "<type> <version> at <address>".
func (c DeployedContract) String() string {
	return c.TypeAndVersion().String() + " at " + c.ID()
}
