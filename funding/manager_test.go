package funding_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm/provider"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

func newManager(t *testing.T, cfg funding.Config) (*evm.Network, *funding.Manager) {
	t.Helper()

	network, identities, err := provider.NewSimNetworkProvider(provider.SimNetworkProviderConfig{}).
		Provision(t.Context(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = network.Close(context.Background())
	})

	return network, funding.NewManager(network, identities)
}

func Test_Manager_Select(t *testing.T) {
	t.Parallel()

	_, m := newManager(t, funding.Config{Identities: 3, CoinsPerIdentity: 1, AmountPerCoin: 1})

	first, err := m.Select()
	require.NoError(t, err)
	assert.Equal(t, uint(0), first.Index)

	third, err := m.SelectIndex(2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), third.Index)
	assert.Equal(t, m.Identities()[2].Address, third.Address)

	_, err = m.SelectIndex(3)
	require.ErrorIs(t, err, funding.ErrNoFundedIdentity)
	require.ErrorContains(t, err, "index 3 out of range")
}

func Test_Manager_Select_NoIdentities(t *testing.T) {
	t.Parallel()

	m := funding.NewManager(evm.NewNetwork(0, nil, nil), nil)

	_, err := m.Select()
	require.ErrorIs(t, err, funding.ErrNoFundedIdentity)
	assert.Empty(t, m.Identities())
}

func Test_Manager_Balance(t *testing.T) {
	t.Parallel()

	cfg := funding.Config{Identities: 2, CoinsPerIdentity: 2, AmountPerCoin: 1_000_000_000}
	_, m := newManager(t, cfg)

	for _, id := range m.Identities() {
		wei, err := m.Balance(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, cfg.BalancePerIdentityWei().String(), wei.String())

		units, err := m.BalanceUnits(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, "2000000000", units.String())
	}
}

func Test_Manager_EnsureBalance(t *testing.T) {
	t.Parallel()

	cfg := funding.Config{Identities: 1, CoinsPerIdentity: 1, AmountPerCoin: 10}
	_, m := newManager(t, cfg)

	id, err := m.Select()
	require.NoError(t, err)

	tests := []struct {
		name    string
		giveFee *big.Int
		wantErr bool
	}{
		{name: "below balance", giveFee: big.NewInt(1)},
		{name: "exact balance", giveFee: cfg.BalancePerIdentityWei()},
		{name: "above balance", giveFee: new(big.Int).Add(cfg.BalancePerIdentityWei(), big.NewInt(1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := m.EnsureBalance(t.Context(), id, tt.giveFee)
			if tt.wantErr {
				require.ErrorIs(t, err, funding.ErrInsufficientBalance)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_Manager_ClosedNetwork(t *testing.T) {
	t.Parallel()

	network, m := newManager(t, funding.DefaultConfig())

	id, err := m.Select()
	require.NoError(t, err)

	require.NoError(t, network.Close(t.Context()))

	_, err = m.Balance(t.Context(), id)
	require.ErrorIs(t, err, evm.ErrNetworkClosed)
}
