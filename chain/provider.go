package chain

import (
	"context"
	"errors"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

// ErrProvision is returned when a network cannot be provisioned, either because the requested
// funding cannot be satisfied or because the underlying node failed to start.
var ErrProvision = errors.New("provision network")

// Provider provisions isolated, ephemeral networks.
//
// Every Provision call creates a new network that shares no state with networks returned by
// earlier calls. The returned identities are ordered by index and each holds the balance requested
// by the funding config. On error no resource is left behind. On success the caller owns the
// network and must Close it.
type Provider interface {
	Name() string
	ChainSelector() uint64
	Provision(ctx context.Context, cfg funding.Config) (*evm.Network, []evm.Identity, error)
}
