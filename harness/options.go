package harness

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm/provider"
	"github.com/smartcontractkit/chainlink-contract-harness/config"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// anvilOnce guards the CTF default network set up shared by every Anvil session of the process.
var anvilOnce = &sync.Once{}

// settings collects the options of a session.
type settings struct {
	source   *artifact.Source
	art      *artifact.Descriptor
	provider chain.Provider
	network  *config.NetworkConfig
	funding  funding.Config
	identity uint
	policy   evm.TxPolicy
	args     []any
	rawArgs  []string
	timeout  time.Duration
	iface    *abi.ABI
	lggr     logger.Logger
	tb       testing.TB
}

func newSettings() *settings {
	return &settings{
		funding: funding.DefaultConfig(),
		lggr:    logger.Nop(),
	}
}

// Option configures a session.
type Option func(*settings) error

// WithArtifact loads the artifact to deploy from src.
func WithArtifact(src artifact.Source) Option {
	return func(s *settings) error {
		s.source = &src
		s.art = nil

		return nil
	}
}

// WithArtifactDescriptor deploys an artifact that was already loaded.
func WithArtifactDescriptor(art *artifact.Descriptor) Option {
	return func(s *settings) error {
		if art == nil {
			return errors.New("artifact descriptor cannot be nil")
		}
		s.art = art
		s.source = nil

		return nil
	}
}

// WithProvider provisions the network with p. Sessions use a simulated network by default.
func WithProvider(p chain.Provider) Option {
	return func(s *settings) error {
		if p == nil {
			return errors.New("provider cannot be nil")
		}
		s.provider = p
		s.network = nil

		return nil
	}
}

// WithFunding replaces the default funding of one identity holding one coin.
func WithFunding(cfg funding.Config) Option {
	return func(s *settings) error {
		s.funding = cfg

		return nil
	}
}

// WithIdentity deploys and signs with the identity at index instead of the first one.
func WithIdentity(index uint) Option {
	return func(s *settings) error {
		s.identity = index

		return nil
	}
}

// WithTxPolicy sets the fee policy of the deployment and of the client's transactions.
func WithTxPolicy(policy evm.TxPolicy) Option {
	return func(s *settings) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		s.policy = policy

		return nil
	}
}

// WithConstructorArgs passes args to the contract constructor.
func WithConstructorArgs(args ...any) Option {
	return func(s *settings) error {
		s.args = args
		s.rawArgs = nil

		return nil
	}
}

// WithRawConstructorArgs passes textual constructor arguments, converted to the constructor's
// parameter types once the artifact is loaded.
func WithRawConstructorArgs(raw ...string) Option {
	return func(s *settings) error {
		s.rawArgs = raw
		s.args = nil

		return nil
	}
}

// WithConfirmTimeout bounds the wait for the deployment to be confirmed.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return fmt.Errorf("confirm timeout cannot be negative: %s", d)
		}
		s.timeout = d

		return nil
	}
}

// WithInterface binds the client to iface instead of the artifact's own interface description.
func WithInterface(iface abi.ABI) Option {
	return func(s *settings) error {
		s.iface = &iface

		return nil
	}
}

// WithLogger sets the logger of the session. Logs are discarded by default.
func WithLogger(lggr logger.Logger) Option {
	return func(s *settings) error {
		if lggr == nil {
			return errors.New("logger cannot be nil")
		}
		s.lggr = lggr

		return nil
	}
}

// WithConfig applies a loaded harness configuration: the artifact source, the network provider,
// the funding, the fee policy, the constructor arguments and the confirmation timeout.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) error {
		if cfg == nil {
			return errors.New("config cannot be nil")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		src, err := cfg.Artifact.Source()
		if err != nil {
			return err
		}

		network := cfg.Network
		s.source = &src
		s.art = nil
		s.provider = nil
		s.network = &network
		s.funding = cfg.Funding
		s.policy = cfg.Deploy.TxPolicy
		s.rawArgs = cfg.Deploy.ConstructorArgs
		s.args = nil
		s.timeout = cfg.Network.ConfirmTimeout

		return nil
	}
}

// networkProvider returns the provider the session provisions with.
func (s *settings) networkProvider() (chain.Provider, error) {
	if s.provider != nil {
		return s.provider, nil
	}

	cfg := config.NetworkConfig{Provider: config.ProviderSimulated}
	if s.network != nil {
		cfg = *s.network
	}

	lggr := s.lggr.Named("provider")
	switch cfg.Provider {
	case config.ProviderSimulated:
		pcfg := provider.SimNetworkProviderConfig{
			BlockTime:     cfg.BlockTime,
			BlockGasLimit: cfg.BlockGasLimit,
			Logger:        lggr,
		}
		if cfg.ConfirmTimeout > 0 {
			pcfg.ConfirmFunctor = provider.ConfirmFuncCommit(cfg.ConfirmTimeout)
		}

		return provider.NewSimNetworkProvider(pcfg), nil
	case config.ProviderAnvil:
		pcfg := provider.CTFAnvilNetworkProviderConfig{
			Once:   anvilOnce,
			Port:   cfg.Anvil.Port,
			Image:  cfg.Anvil.Image,
			T:      s.tb,
			Logger: lggr,
		}
		if cfg.ConfirmTimeout > 0 {
			pcfg.ConfirmFunctor = provider.ConfirmFuncGeth(cfg.ConfirmTimeout, provider.WithTickInterval(100*time.Millisecond))
		}

		return provider.NewCTFAnvilNetworkProvider(pcfg), nil
	}

	return nil, fmt.Errorf("%w: unknown network provider %q", chain.ErrProvision, cfg.Provider)
}

// artifact returns the descriptor to deploy, loading it if needed.
func (s *settings) artifact() (*artifact.Descriptor, error) {
	if s.art != nil {
		return s.art, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: no artifact configured", artifact.ErrArtifactNotFound)
	}

	return artifact.Load(*s.source)
}
