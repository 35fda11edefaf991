// Package harness runs a contract integration test session: it loads a compiled artifact,
// provisions an ephemeral network, selects a funded identity, deploys the artifact and binds a
// typed client to the deployed contract.
//
// Every session owns exactly one network. The network is closed exactly once, whichever comes
// first of Session.Close, the cancellation of the context passed to New, the end of the test
// (Setup and Run) or a failure of any stage after provisioning.
//
//	func TestStorage(t *testing.T) {
//		harness.Run(t, func(t *testing.T, s *harness.Session) {
//			_, err := s.Client.Transact(t.Context(), "store", big.NewInt(42))
//			require.NoError(t, err)
//		}, harness.WithArtifact(artifact.Source{Dir: "out/debug", Name: "storage"}))
//	}
package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/binding"
	"github.com/smartcontractkit/chainlink-contract-harness/chain"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/deploy"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// closeTimeout bounds the teardown triggered by a failure or a cancelled context.
const closeTimeout = 30 * time.Second

// Session is a deployed contract on its own ephemeral network.
type Session struct {
	// ID identifies the session in logs.
	ID uuid.UUID

	Artifact   *artifact.Descriptor
	Network    *evm.Network
	Identities []evm.Identity
	// Identity deployed the contract and signs the client's transactions.
	Identity evm.Identity
	Funding  *funding.Manager
	Pipeline *deploy.Pipeline
	Contract deploy.DeployedContract
	Client   *binding.ContractClient

	stop func() bool
}

// Close releases the network. It is safe to call any number of times from any goroutine.
func (s *Session) Close(ctx context.Context) error {
	s.stop()

	return s.Network.Close(ctx)
}

// New runs the session pipeline. The artifact is loaded before any network is provisioned, so an
// artifact error never leaves a network behind. Once provisioned, the network is closed when ctx
// is cancelled or when a later stage fails.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	s := newSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	sessionID := uuid.New()
	lggr := s.lggr.With("session", sessionID.String())

	art, err := s.artifact()
	if err != nil {
		return nil, err
	}
	lggr.Debugw("Artifact loaded", "artifact", art.String(), "bin", art.BinPath, "abi", art.ABIPath)

	args, err := constructorArgs(art, s)
	if err != nil {
		return nil, err
	}

	iface := art.ABI
	if s.iface != nil {
		iface = *s.iface
	}

	prov, err := s.networkProvider()
	if err != nil {
		return nil, err
	}

	network, identities, err := prov.Provision(ctx, s.funding)
	if err != nil {
		if !errors.Is(err, chain.ErrProvision) {
			err = fmt.Errorf("%w: %w", chain.ErrProvision, err)
		}

		return nil, err
	}

	sess := &Session{
		ID:         sessionID,
		Artifact:   art,
		Network:    network,
		Identities: identities,
		Funding:    funding.NewManager(network, identities),
	}
	sess.stop = context.AfterFunc(ctx, func() {
		closeWithTimeout(lggr, network)
	})

	lggr = lggr.With("network", network.ID().String())
	fail := func(err error) (*Session, error) {
		sess.stop()
		if cerr := network.Close(context.WithoutCancel(ctx)); cerr != nil {
			lggr.Errorw("Failed to close network", "error", cerr)
		}

		return nil, err
	}

	if sess.Identity, err = sess.Funding.SelectIndex(s.identity); err != nil {
		return fail(err)
	}

	sess.Pipeline = deploy.NewPipeline(lggr,
		deploy.WithDefaultTxPolicy(s.policy),
		deploy.WithConfirmTimeout(s.timeout),
	)

	sess.Contract, err = sess.Pipeline.Deploy(ctx, network, sess.Identity, art, deploy.WithConstructorArgs(args...))
	if err != nil {
		return fail(err)
	}

	sess.Client, err = binding.NewContractClient(iface, sess.Contract, sess.Identity,
		binding.WithTxPolicy(s.policy),
		binding.WithLogger(lggr),
	)
	if err != nil {
		return fail(err)
	}

	lggr.Infow("Session ready",
		"provider", prov.Name(),
		"contract", sess.Contract.String(),
		"identity", sess.Identity.Address.Hex(),
	)

	return sess, nil
}

// Setup runs New for the test tb and registers the session teardown with tb.Cleanup. The session
// logs to tb unless WithLogger is passed.
func Setup(tb testing.TB, opts ...Option) *Session {
	tb.Helper()

	opts = append([]Option{WithLogger(logger.Test(tb)), withTB(tb)}, opts...)

	sess, err := New(tb.Context(), opts...)
	require.NoError(tb, err)

	tb.Cleanup(func() {
		assert.NoError(tb, sess.Close(context.Background()))
	})

	return sess
}

// Run sets up a session and passes it to fn. The network is closed when the test ends.
func Run(t *testing.T, fn func(t *testing.T, s *Session), opts ...Option) {
	t.Helper()

	fn(t, Setup(t, opts...))
}

func withTB(tb testing.TB) Option {
	return func(s *settings) error {
		s.tb = tb

		return nil
	}
}

// constructorArgs returns the arguments passed to the constructor of art, converting textual
// arguments to the constructor's parameter types.
func constructorArgs(art *artifact.Descriptor, s *settings) ([]any, error) {
	if s.rawArgs == nil {
		return s.args, nil
	}

	args, err := deploy.ParseArgs(art.ABI.Constructor.Inputs, s.rawArgs)
	if err != nil {
		return nil, &deploy.DeploymentError{Artifact: art.String(), Stage: deploy.StageEncode, Cause: err}
	}

	return args, nil
}

func closeWithTimeout(lggr logger.Logger, network *evm.Network) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := network.Close(ctx); err != nil {
		lggr.Errorw("Failed to close network", "error", err)
		return
	}
	lggr.Debugw("Network closed on context cancellation")
}
