package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	chain_selectors "github.com/smartcontractkit/chain-selectors"

	"github.com/smartcontractkit/chainlink-contract-harness/chain"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	chaincommon "github.com/smartcontractkit/chainlink-contract-harness/chain/internal/common"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

var (
	// simChainID is the chain ID for the simulated EVM network. This is always set to 1337 across
	// all instances of simulated networks.
	simChainID = params.AllDevChainProtocolChanges.ChainID
)

// DefaultBlockGasLimit is the block gas limit of simulated networks.
const DefaultBlockGasLimit = 50_000_000

// SimNetworkProviderConfig holds the configuration to initialize the SimNetworkProvider.
type SimNetworkProviderConfig struct {
	// Optional: Selector must map to chain id 1337. Defaults to GETH_TESTNET.
	Selector uint64
	// Optional: BlockTime configures the time between blocks being committed. By default, this is
	// set to 0s, meaning that blocks are only committed when a transaction is confirmed.
	BlockTime time.Duration
	// Optional: BlockGasLimit defaults to DefaultBlockGasLimit.
	BlockGasLimit uint64
	// Optional: ConfirmFunctor defaults to ConfirmFuncCommit(DefaultConfirmTimeout).
	ConfirmFunctor ConfirmFunctor
	// Optional: Logger defaults to a no-op logger.
	Logger logger.Logger
}

func (c SimNetworkProviderConfig) withDefaults() SimNetworkProviderConfig {
	if c.Selector == 0 {
		c.Selector = chain_selectors.GETH_TESTNET.Selector
	}
	if c.BlockGasLimit == 0 {
		c.BlockGasLimit = DefaultBlockGasLimit
	}
	if c.ConfirmFunctor == nil {
		c.ConfirmFunctor = ConfirmFuncCommit(DefaultConfirmTimeout)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return c
}

var _ chain.Provider = (*SimNetworkProvider)(nil)

// SimNetworkProvider provisions networks backed by go-ethereum's in memory simulated backend.
// Every Provision call creates a new backend.
type SimNetworkProvider struct {
	config SimNetworkProviderConfig
}

// NewSimNetworkProvider creates a new SimNetworkProvider with the given configuration.
func NewSimNetworkProvider(config SimNetworkProviderConfig) *SimNetworkProvider {
	return &SimNetworkProvider{config: config.withDefaults()}
}

// Name returns the name of the SimNetworkProvider.
func (*SimNetworkProvider) Name() string {
	return "Simulated EVM Network Provider"
}

// ChainSelector returns the chain selector of the networks provisioned by this provider.
func (p *SimNetworkProvider) ChainSelector() uint64 {
	return p.config.Selector
}

// Provision starts a simulated backend whose genesis block credits each identity with
// CoinsPerIdentity x AmountPerCoin value units.
func (p *SimNetworkProvider) Provision(
	ctx context.Context, cfg funding.Config,
) (*evm.Network, []evm.Identity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	chainID, err := chaincommon.ChainMetadata{Selector: p.config.Selector}.EVMChainID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}
	if chainID.Cmp(simChainID) != 0 {
		return nil, nil, fmt.Errorf("%w: selector %d maps to chain id %s, simulated networks use %s",
			chain.ErrProvision, p.config.Selector, chainID, simChainID,
		)
	}

	identities, err := deriveIdentities(cfg, simChainID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	// Prefund the identities
	balance := cfg.BalancePerIdentityWei()
	genesis := make(types.GenesisAlloc, len(identities))
	for _, id := range identities {
		genesis[id.Address] = types.Account{Balance: balance}
	}

	backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(p.config.BlockGasLimit))
	backend.Commit() // Commit the genesis block

	// Wrap the simulated client to implement the OnchainClient interface. This allows us to use
	// the simulated client as a client for the evm.Network.
	client, err := NewSimClient(backend)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	confirm, err := p.config.ConfirmFunctor.Generate(p.config.Selector, client, identities[0].Address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, joinClose(ctx, func(context.Context) error { return client.Close() }, err))
	}

	network := evm.NewNetwork(p.config.Selector, client, confirm)
	if err = network.OnClose(func(context.Context) error { return client.Close() }); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	// Start mining blocks if a block time is configured
	if p.config.BlockTime > 0 {
		stop := startAutoMine(client, p.config.BlockTime)
		if err = network.OnClose(stop); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
		}
	}

	if _, err = client.BlockNumber(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: network not usable: %w",
			chain.ErrProvision, joinClose(ctx, network.Close, err),
		)
	}

	p.config.Logger.Infow("Provisioned simulated network",
		"network", network.ID(),
		"selector", p.config.Selector,
		"identities", len(identities),
		"balancePerIdentity", cfg.BalancePerIdentity(),
	)

	return network, identities, nil
}

// startAutoMine commits a new block every blockTime until the returned stop function is called.
func startAutoMine(client *SimClient, blockTime time.Duration) func(context.Context) error {
	var (
		done = make(chan struct{})
		wg   sync.WaitGroup
	)

	ticker := time.NewTicker(blockTime)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				client.Commit()
			case <-done:
				return
			}
		}
	}()

	return func(context.Context) error {
		close(done)
		wg.Wait()

		return nil
	}
}
