// This file implements CTFAnvilNetworkProvider, which provisions Anvil networks running inside
// Chainlink Testing Framework (CTF) Docker containers.
//
// # Anvil Integration
//
// Anvil is a local Ethereum node designed for development and testing, part of the Foundry
// toolkit. The provider starts one container per Provision call, waits until its RPC answers and
// funds the requested identities from Anvil's first pre-funded account, sending one transfer per
// coin. When the identities share Anvil's mnemonic they are derived past the pre-funded accounts.
//
// # Usage
//
//	func TestOnAnvil(t *testing.T) {
//		var once sync.Once
//		p := NewCTFAnvilNetworkProvider(CTFAnvilNetworkProviderConfig{
//			Once: &once,
//			T:    t, // Required when Port is not provided
//		})
//
//		network, identities, err := p.Provision(t.Context(), funding.DefaultConfig())
//		require.NoError(t, err)
//		t.Cleanup(func() { _ = network.Close(context.Background()) })
//	}
//
// # Port Management
//
// When Port is set that exact port is used. Otherwise a free port is allocated with freeport,
// which requires T.
//
// # Requirements
//
// Docker must be installed and running.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	chain_selectors "github.com/smartcontractkit/chain-selectors"
	"github.com/smartcontractkit/chainlink-testing-framework/framework"
	"github.com/smartcontractkit/chainlink-testing-framework/framework/components/blockchain"
	"github.com/smartcontractkit/freeport"
	"github.com/testcontainers/testcontainers-go"

	"github.com/smartcontractkit/chainlink-contract-harness/chain"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	chaincommon "github.com/smartcontractkit/chainlink-contract-harness/chain/internal/common"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// anvilFaucetPrivateKey is the key of Anvil's first default account, pre-funded with 10000 ETH.
// Account 0: 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
const anvilFaucetPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// anvilMnemonic is the mnemonic Anvil derives its pre-funded accounts from.
const anvilMnemonic = "test test test test test test test test test test test junk"

const (
	// anvilPrefundedAccounts is the number of accounts Anvil funds at start-up.
	anvilPrefundedAccounts = 10

	anvilStartAttempts = 10
	anvilReadyAttempts = 30
	transferGasLimit   = 21_000
)

// CTFAnvilNetworkProviderConfig holds the configuration to initialize the CTFAnvilNetworkProvider.
type CTFAnvilNetworkProviderConfig struct {
	// Required: A sync.Once instance to ensure that the CTF framework only sets up the new
	// DefaultNetwork once
	Once *sync.Once

	// Optional: Selector defaults to GETH_TESTNET. The chain id of the container is derived from it.
	Selector uint64

	// Optional: ConfirmFunctor defaults to ConfirmFuncGeth(DefaultConfirmTimeout) polling every
	// 100ms, as Anvil mines each transaction as soon as it is received.
	ConfirmFunctor ConfirmFunctor

	// Optional: DockerCmdParamsOverrides are passed to the Anvil container, e.g.
	// []string{"--block-time", "2"}.
	DockerCmdParamsOverrides []string

	// Optional: Port specifies the host port of the Anvil container. If not provided, a free port
	// is allocated.
	Port string

	// Optional: Image specifies the Docker image to use for the Anvil container. If not provided,
	// the default Anvil image from the CTF framework will be used.
	Image string

	// Optional: This is only required when Port is not provided so we can use freeport to get a
	// free port. Containers are also registered for cleanup with T when it is set.
	T testing.TB

	// Optional: Logger defaults to a no-op logger.
	Logger logger.Logger
}

// validate checks if the config fields are valid.
func (c CTFAnvilNetworkProviderConfig) validate() error {
	if c.Once == nil {
		return errors.New("sync.Once instance is required")
	}

	if c.Port != "" {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			return fmt.Errorf("invalid port %s: must be a valid integer", c.Port)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
		}
	} else if c.T == nil {
		return errors.New("field T is required when port is not provided")
	}

	return nil
}

func (c CTFAnvilNetworkProviderConfig) withDefaults() CTFAnvilNetworkProviderConfig {
	if c.Selector == 0 {
		c.Selector = chain_selectors.GETH_TESTNET.Selector
	}
	if c.ConfirmFunctor == nil {
		c.ConfirmFunctor = ConfirmFuncGeth(DefaultConfirmTimeout, WithTickInterval(100*time.Millisecond))
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return c
}

var _ chain.Provider = (*CTFAnvilNetworkProvider)(nil)

// CTFAnvilNetworkProvider provisions Anvil networks running inside Chainlink Testing Framework
// (CTF) Docker containers.
//
// This provider requires Docker to be installed and operational. Spinning up a new container is
// much slower than the simulated backend.
type CTFAnvilNetworkProvider struct {
	config CTFAnvilNetworkProviderConfig
}

// NewCTFAnvilNetworkProvider creates a new CTFAnvilNetworkProvider with the given configuration.
func NewCTFAnvilNetworkProvider(config CTFAnvilNetworkProviderConfig) *CTFAnvilNetworkProvider {
	return &CTFAnvilNetworkProvider{config: config.withDefaults()}
}

// Name returns the human-readable name of the CTFAnvilNetworkProvider.
func (*CTFAnvilNetworkProvider) Name() string {
	return "Anvil EVM CTF Network Provider"
}

// ChainSelector returns the chain selector of the networks provisioned by this provider.
func (p *CTFAnvilNetworkProvider) ChainSelector() uint64 {
	return p.config.Selector
}

// Provision starts a new Anvil container, waits until it answers RPC requests and funds the
// requested identities. The container is terminated when the returned network is closed.
func (p *CTFAnvilNetworkProvider) Provision(
	ctx context.Context, cfg funding.Config,
) (*evm.Network, []evm.Identity, error) {
	if err := p.config.validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	chainID, err := chaincommon.ChainMetadata{Selector: p.config.Selector}.EVMChainID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	identities, err := deriveIdentities(cfg, chainID, anvilFirstIndex(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	httpURL, container, err := p.startContainer(ctx, chainID.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	terminate := func(ctx context.Context) error {
		if terr := container.Terminate(ctx); terr != nil {
			return fmt.Errorf("failed to terminate Anvil container: %w", terr)
		}

		return nil
	}

	client, err := ethclient.DialContext(ctx, httpURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %w", chain.ErrProvision, httpURL, joinClose(ctx, terminate, err))
	}

	network, err := p.newNetwork(client, identities, terminate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, err)
	}

	if err = p.prepare(ctx, network, client, chainID, cfg, identities); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", chain.ErrProvision, joinClose(ctx, network.Close, err))
	}

	p.config.Logger.Infow("Provisioned Anvil network",
		"network", network.ID(),
		"selector", p.config.Selector,
		"url", httpURL,
		"identities", len(identities),
		"balancePerIdentity", cfg.BalancePerIdentity(),
	)

	return network, identities, nil
}

// anvilFirstIndex returns the derivation index of the first identity. Identities derived from
// Anvil's own mnemonic skip the accounts Anvil pre-funds, so every identity starts with exactly
// the configured balance.
func anvilFirstIndex(cfg funding.Config) uint32 {
	if cfg.MnemonicOrDefault() == anvilMnemonic {
		return anvilPrefundedAccounts
	}

	return 0
}

// newNetwork wraps client in a network that terminates the container when closed.
func (p *CTFAnvilNetworkProvider) newNetwork(
	client *ethclient.Client, identities []evm.Identity, terminate func(context.Context) error,
) (*evm.Network, error) {
	closeAll := func(ctx context.Context) error {
		client.Close()

		return terminate(ctx)
	}

	confirm, err := p.config.ConfirmFunctor.Generate(p.config.Selector, client, identities[0].Address)
	if err != nil {
		return nil, joinClose(context.Background(), closeAll, err)
	}

	network := evm.NewNetwork(p.config.Selector, client, confirm)
	if err = network.OnClose(terminate); err != nil {
		return nil, err
	}
	if err = network.OnClose(func(context.Context) error {
		client.Close()
		return nil
	}); err != nil {
		return nil, err
	}

	return network, nil
}

// prepare waits for the node and funds the identities.
func (p *CTFAnvilNetworkProvider) prepare(
	ctx context.Context,
	network *evm.Network,
	client *ethclient.Client,
	chainID *big.Int,
	cfg funding.Config,
	identities []evm.Identity,
) error {
	if err := waitForAnvilReady(ctx, client, chainID); err != nil {
		return err
	}

	faucetKey, err := crypto.HexToECDSA(anvilFaucetPrivateKey)
	if err != nil {
		return err
	}

	faucet, err := bind.NewKeyedTransactorWithChainID(faucetKey, chainID)
	if err != nil {
		return err
	}

	return fundIdentities(ctx, network, faucet, chainID, identities, cfg)
}

// startContainer starts a CTF container for the Anvil EVM returning the HTTP URL of the node and
// the container handle.
func (p *CTFAnvilNetworkProvider) startContainer(
	ctx context.Context, chainID string,
) (string, testcontainers.Container, error) {
	err := framework.DefaultNetwork(p.config.Once)
	if err != nil {
		return "", nil, fmt.Errorf("failed to set up CTF default network: %w", err)
	}

	type started struct {
		url       string
		container testcontainers.Container
	}

	out, err := retry.DoWithData(func() (started, error) {
		var port int
		if p.config.Port != "" {
			var perr error
			if port, perr = strconv.Atoi(p.config.Port); perr != nil {
				return started{}, retry.Unrecoverable(fmt.Errorf("invalid port %s: %w", p.config.Port, perr))
			}
		} else {
			port = freeport.GetOne(p.config.T)
		}

		input := &blockchain.Input{
			Type:                     blockchain.TypeAnvil,
			ChainID:                  chainID,
			Port:                     strconv.Itoa(port),
			Image:                    p.config.Image,
			DockerCmdParamsOverrides: p.config.DockerCmdParamsOverrides,
		}

		output, rerr := blockchain.NewBlockchainNetwork(input)
		if rerr != nil {
			// Return the port to freeport only if it was auto-allocated
			if p.config.Port == "" {
				freeport.Return([]int{port})
			}

			return started{}, fmt.Errorf("failed to create Anvil container: %w", rerr)
		}

		if p.config.T != nil {
			testcontainers.CleanupContainer(p.config.T, output.Container)
		}

		return started{url: output.Nodes[0].ExternalHTTPUrl, container: output.Container}, nil
	},
		retry.Context(ctx),
		retry.Attempts(anvilStartAttempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start CTF Anvil container after %d attempts: %w",
			anvilStartAttempts, err,
		)
	}

	return out.url, out.container, nil
}

// waitForAnvilReady polls the node until it reports the expected chain id.
func waitForAnvilReady(ctx context.Context, client *ethclient.Client, chainID *big.Int) error {
	return retry.Do(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		got, err := client.ChainID(reqCtx)
		if err != nil {
			return fmt.Errorf("query chain id: %w", err)
		}
		if got.Cmp(chainID) != 0 {
			return retry.Unrecoverable(fmt.Errorf("node reports chain id %s, expected %s", got, chainID))
		}

		return nil
	},
		retry.Context(ctx),
		retry.Attempts(anvilReadyAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
	)
}

// fundIdentities sends CoinsPerIdentity transfers of AmountPerCoin value units from faucet to
// every identity and waits until all of them are confirmed.
func fundIdentities(
	ctx context.Context,
	network *evm.Network,
	faucet *bind.TransactOpts,
	chainID *big.Int,
	identities []evm.Identity,
	cfg funding.Config,
) error {
	if cfg.CoinsPerIdentity == 0 || cfg.AmountPerCoin == 0 {
		return nil
	}

	client := network.Client
	from := faucet.From

	tip, feeCap, err := evm.TxPolicy{}.Prices(ctx, client)
	if err != nil {
		return err
	}

	transfers := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(cfg.Identities)),
		new(big.Int).SetUint64(uint64(cfg.CoinsPerIdentity)),
	)
	gas := new(big.Int).Mul(big.NewInt(transferGasLimit), feeCap)
	need := new(big.Int).Mul(new(big.Int).Add(cfg.CoinWei(), gas), transfers)

	have, err := client.BalanceAt(ctx, from, nil)
	if err != nil {
		return fmt.Errorf("get faucet balance: %w", err)
	}
	if have.Cmp(need) < 0 {
		return fmt.Errorf("faucet %s holds %s wei, funding requires up to %s wei", from.Hex(), have, need)
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("get faucet nonce: %w", err)
	}

	var sent []*types.Transaction
	for _, id := range identities {
		to := id.Address
		for range cfg.CoinsPerIdentity {
			tx := types.NewTx(&types.DynamicFeeTx{
				ChainID:   chainID,
				Nonce:     nonce,
				To:        &to,
				Value:     cfg.CoinWei(),
				Gas:       transferGasLimit,
				GasTipCap: tip,
				GasFeeCap: feeCap,
			})

			signed, err := faucet.Signer(from, tx)
			if err != nil {
				return fmt.Errorf("sign tx: %w", err)
			}
			if err = client.SendTransaction(ctx, signed); err != nil {
				return fmt.Errorf("send tx to %s: %w", to.Hex(), err)
			}

			sent = append(sent, signed)
			nonce++
		}
	}

	for _, tx := range sent {
		if _, err := network.Confirm(ctx, tx); err != nil {
			return fmt.Errorf("fund %s: %w", tx.To().Hex(), err)
		}
	}

	return nil
}
