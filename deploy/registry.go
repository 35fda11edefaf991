package deploy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
)

// Registry records the contracts deployed on each network, keyed by network ID and address.
// Addresses are unique within a network and are never reassigned. The entries of a network are
// dropped when the network closes.
//
// All methods return results in address order.
type Registry struct {
	mu        sync.RWMutex
	byNetwork map[uuid.UUID]map[common.Address]DeployedContract
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byNetwork: make(map[uuid.UUID]map[common.Address]DeployedContract),
	}
}

// Save records c. It errors if the network already holds a contract at c.Address.
func (r *Registry) Save(c DeployedContract) error {
	if c.Network == nil {
		return errors.New("contract has no network")
	}
	if c.Address == (common.Address{}) {
		return errors.New("address cannot be empty")
	}
	if c.TypeAndVersion().Type == "" {
		return errors.New("type cannot be empty")
	}

	id := c.Network.ID()

	r.mu.Lock()
	contracts, tracked := r.byNetwork[id]
	if !tracked {
		contracts = make(map[common.Address]DeployedContract)
		r.byNetwork[id] = contracts
	}
	if existing, ok := contracts[c.Address]; ok {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s holds %s on network %s",
			ErrAddressTaken, c.ID(), existing.TypeAndVersion(), id,
		)
	}
	contracts[c.Address] = c
	r.mu.Unlock()

	if !tracked {
		// runs right away if the network is already closed
		return c.Network.OnClose(func(context.Context) error {
			r.Forget(id)
			return nil
		})
	}

	return nil
}

// Get returns the contract recorded at addr on the network.
func (r *Registry) Get(networkID uuid.UUID, addr common.Address) (DeployedContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byNetwork[networkID][addr]
	if !ok {
		return DeployedContract{}, fmt.Errorf("%w: no contract recorded at %s on network %s",
			ErrNotDeployed, addr.Hex(), networkID,
		)
	}

	return c, nil
}

// Addresses returns the type and version of every contract recorded on the network.
func (r *Registry) Addresses(networkID uuid.UUID) map[common.Address]artifact.TypeAndVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[common.Address]artifact.TypeAndVersion, len(r.byNetwork[networkID]))
	for addr, c := range r.byNetwork[networkID] {
		out[addr] = c.TypeAndVersion()
	}

	return out
}

// Contracts returns every contract recorded on the network.
func (r *Registry) Contracts(networkID uuid.UUID) []DeployedContract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contracts := r.byNetwork[networkID]
	out := make([]DeployedContract, 0, len(contracts))
	for _, addr := range sortedAddresses(contracts) {
		out = append(out, contracts[addr])
	}

	return out
}

// Search returns the contracts of type typ recorded on the network.
func (r *Registry) Search(networkID uuid.UUID, typ artifact.ContractType) []DeployedContract {
	var out []DeployedContract
	for _, c := range r.Contracts(networkID) {
		if c.TypeAndVersion().Type == typ {
			out = append(out, c)
		}
	}

	return out
}

// Forget drops every contract recorded on the network.
func (r *Registry) Forget(networkID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byNetwork, networkID)
}

func sortedAddresses(contracts map[common.Address]DeployedContract) []common.Address {
	return slices.SortedFunc(maps.Keys(contracts), common.Address.Cmp)
}
