package funding

import (
	"context"
	"fmt"
	"math/big"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
)

// Manager selects the identity used by a test session and answers balance queries. It never moves
// value: an identity that cannot pay stays unable to pay.
type Manager struct {
	network    *evm.Network
	identities []evm.Identity
}

// NewManager returns a Manager over the identities created for network.
func NewManager(network *evm.Network, identities []evm.Identity) *Manager {
	return &Manager{
		network:    network,
		identities: identities,
	}
}

// Identities returns the identities in index order.
func (m *Manager) Identities() []evm.Identity {
	out := make([]evm.Identity, len(m.identities))
	copy(out, m.identities)

	return out
}

// Select returns the identity with the lowest index.
func (m *Manager) Select() (evm.Identity, error) {
	return m.SelectIndex(0)
}

// SelectIndex returns the identity at index i.
func (m *Manager) SelectIndex(i uint) (evm.Identity, error) {
	if len(m.identities) == 0 {
		return evm.Identity{}, fmt.Errorf("%w: the network has no identities", ErrNoFundedIdentity)
	}
	if i >= uint(len(m.identities)) {
		return evm.Identity{}, fmt.Errorf("%w: index %d out of range, the network has %d identities",
			ErrNoFundedIdentity, i, len(m.identities),
		)
	}

	return m.identities[i], nil
}

// Balance returns the balance of id in wei at the latest block.
func (m *Manager) Balance(ctx context.Context, id evm.Identity) (*big.Int, error) {
	if err := m.network.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := m.network.Bind(ctx)
	defer cancel()

	balance, err := m.network.Client.BalanceAt(ctx, id.Address, nil)
	if err != nil {
		if m.network.Closed() {
			return nil, evm.ErrNetworkClosed
		}

		return nil, fmt.Errorf("get balance of %s: %w", id, err)
	}

	return balance, nil
}

// BalanceUnits returns the balance of id in whole value units.
func (m *Manager) BalanceUnits(ctx context.Context, id evm.Identity) (*big.Int, error) {
	balance, err := m.Balance(ctx, id)
	if err != nil {
		return nil, err
	}

	return WeiToUnits(balance), nil
}

// EnsureBalance returns ErrInsufficientBalance when id holds less than fee wei.
func (m *Manager) EnsureBalance(ctx context.Context, id evm.Identity, fee *big.Int) error {
	balance, err := m.Balance(ctx, id)
	if err != nil {
		return err
	}

	if balance.Cmp(fee) < 0 {
		return fmt.Errorf("%w: %s holds %s wei, %s wei required", ErrInsufficientBalance, id, balance, fee)
	}

	return nil
}
