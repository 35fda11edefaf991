// Package deploy submits compiled artifacts to an ephemeral network and records the resulting
// contract instances.
//
// A deployment blocks until the network confirms it, fails, or the confirmation times out. It is
// never retried: a failed deployment is reported to the caller as a *DeploymentError naming the
// stage that failed.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// Pipeline deploys artifacts. A Pipeline may serve any number of networks concurrently.
type Pipeline struct {
	lggr           logger.Logger
	registry       *Registry
	policy         evm.TxPolicy
	confirmTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry records deployments in r instead of a registry owned by the pipeline.
func WithRegistry(r *Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithDefaultTxPolicy sets the policy deployments start from. WithTxPolicy overrides its fields.
func WithDefaultTxPolicy(policy evm.TxPolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithConfirmTimeout bounds the wait for a confirmation, on top of any deadline of the network's
// own ConfirmFunc. Zero leaves the bound to the ConfirmFunc.
func WithConfirmTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.confirmTimeout = d
	}
}

// NewPipeline returns a Pipeline logging to lggr. A nil lggr discards logs.
func NewPipeline(lggr logger.Logger, opts ...Option) *Pipeline {
	if lggr == nil {
		lggr = logger.Nop()
	}

	p := &Pipeline{
		lggr:     lggr.Named("deploy"),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Registry returns the registry deployments are recorded in.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// DeployOption configures a single deployment.
type DeployOption func(*deployConfig)

type deployConfig struct {
	policy evm.TxPolicy
	args   []any
}

// WithTxPolicy overrides the fields of the pipeline's default policy that are set in policy.
func WithTxPolicy(policy evm.TxPolicy) DeployOption {
	return func(c *deployConfig) {
		c.policy = c.policy.Merge(policy)
	}
}

// WithConstructorArgs passes args to the contract constructor.
func WithConstructorArgs(args ...any) DeployOption {
	return func(c *deployConfig) {
		c.args = args
	}
}

// plan is a validated, priced deployment.
type plan struct {
	art      *artifact.Descriptor
	id       evm.Identity
	args     []any
	estimate *evm.FeeEstimate
}

// EstimateFee prices the deployment of art by id without submitting it. Errors are reported the
// same way Deploy reports them.
func (p *Pipeline) EstimateFee(
	ctx context.Context, net *evm.Network, id evm.Identity, art *artifact.Descriptor, opts ...DeployOption,
) (*evm.FeeEstimate, error) {
	if err := validate(net, art); err != nil {
		return nil, err
	}

	ctx, cancel := net.Bind(ctx)
	defer cancel()

	pl, err := p.prepare(ctx, net, id, art, opts)
	if err != nil {
		return nil, err
	}

	return pl.estimate, nil
}

// Deploy submits art signed by id and waits for the network to confirm it. The contract is
// recorded in the pipeline's registry on success.
//
// Every error matches ErrDeploymentFailed and carries its cause: ErrTimeout when the confirmation
// did not arrive in time, evm.ErrNetworkClosed when the network closed first, evm.ErrTxReverted
// when the constructor reverted, funding.ErrInsufficientBalance when id cannot pay.
func (p *Pipeline) Deploy(
	ctx context.Context, net *evm.Network, id evm.Identity, art *artifact.Descriptor, opts ...DeployOption,
) (DeployedContract, error) {
	if err := validate(net, art); err != nil {
		return DeployedContract{}, err
	}

	started := time.Now()
	lggr := p.lggr.With("network", net.String(), "networkID", net.ID().String(), "artifact", art.String())

	ctx, cancel := net.Bind(ctx)
	defer cancel()

	pl, err := p.prepare(ctx, net, id, art, opts)
	if err != nil {
		return DeployedContract{}, err
	}
	lggr.Debugw("Deployment priced",
		"deployer", id.Address.Hex(), "gasLimit", pl.estimate.GasLimit, "fee", pl.estimate.Fee.String(),
	)

	if err = funding.NewManager(net, []evm.Identity{id}).EnsureBalance(ctx, id, pl.estimate.Fee); err != nil {
		return DeployedContract{}, p.fail(net, art, StageFunds, common.Hash{}, err)
	}

	address, tx, err := p.submit(ctx, pl, net.Client)
	if err != nil {
		return DeployedContract{}, p.fail(net, art, StageSubmit, common.Hash{}, err)
	}
	lggr.Debugw("Deployment submitted", "tx", tx.Hash().Hex(), "address", address.Hex())

	receipt, err := p.confirm(ctx, net, tx)
	if err != nil {
		return DeployedContract{}, p.fail(net, art, StageConfirm, tx.Hash(), err)
	}

	code, err := net.Client.CodeAt(ctx, address, nil)
	if err != nil {
		return DeployedContract{}, p.fail(net, art, StageVerify, tx.Hash(), fmt.Errorf("get code: %w", err))
	}
	if len(code) == 0 {
		return DeployedContract{}, p.fail(net, art, StageVerify, tx.Hash(),
			fmt.Errorf("%w: no code at %s", ErrNotDeployed, address.Hex()),
		)
	}

	contract := DeployedContract{
		Address:     address,
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Fee:         paidFee(receipt, tx),
		Deployer:    id,
		Network:     net,
		Artifact:    art,
		RuntimeCode: code,
	}

	if err = p.registry.Save(contract); err != nil {
		return DeployedContract{}, p.fail(net, art, StageRegister, tx.Hash(), err)
	}

	lggr.Infow("Contract deployed",
		"address", contract.ID(),
		"tx", contract.TxHash.Hex(),
		"block", contract.BlockNumber,
		"gasUsed", contract.GasUsed,
		"duration", time.Since(started).String(),
	)

	return contract, nil
}

// Lookup returns the contract deployed at addr on net, after checking that its code is still
// present.
func (p *Pipeline) Lookup(ctx context.Context, net *evm.Network, addr common.Address) (DeployedContract, error) {
	if err := net.Err(); err != nil {
		return DeployedContract{}, err
	}

	contract, err := p.registry.Get(net.ID(), addr)
	if err != nil {
		return DeployedContract{}, err
	}

	ctx, cancel := net.Bind(ctx)
	defer cancel()

	code, err := net.Client.CodeAt(ctx, addr, nil)
	if err != nil {
		if net.Closed() {
			return DeployedContract{}, evm.ErrNetworkClosed
		}

		return DeployedContract{}, fmt.Errorf("get code at %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		return DeployedContract{}, fmt.Errorf("%w: no code at %s", ErrNotDeployed, addr.Hex())
	}

	return contract, nil
}

func validate(net *evm.Network, art *artifact.Descriptor) error {
	switch {
	case art == nil:
		return &DeploymentError{Stage: StageValidate, Cause: errors.New("artifact is required")}
	case net == nil:
		return &DeploymentError{Artifact: art.String(), Stage: StageValidate, Cause: errors.New("network is required")}
	case net.Closed():
		return &DeploymentError{Artifact: art.String(), Stage: StageValidate, Cause: evm.ErrNetworkClosed}
	}

	return nil
}

// prepare checks the deployment request, encodes the constructor arguments and prices the
// deployment.
func (p *Pipeline) prepare(
	ctx context.Context, net *evm.Network, id evm.Identity, art *artifact.Descriptor, opts []DeployOption,
) (*plan, error) {
	cfg := deployConfig{policy: p.policy}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !id.CanSign() {
		return nil, p.fail(net, art, StageValidate, common.Hash{}, fmt.Errorf("%w: %s", evm.ErrNoSigner, id))
	}
	if err := cfg.policy.Validate(); err != nil {
		return nil, p.fail(net, art, StageValidate, common.Hash{}, err)
	}

	packed, err := art.ABI.Pack("", cfg.args...)
	if err != nil {
		return nil, p.fail(net, art, StageEncode, common.Hash{}, fmt.Errorf("encode constructor arguments: %w", err))
	}

	input := append(append([]byte{}, art.Bytecode...), packed...)
	estimate, err := cfg.policy.Estimate(ctx, net.Client, ethereum.CallMsg{From: id.Address, Data: input})
	if err != nil {
		return nil, p.fail(net, art, StageEstimate, common.Hash{}, err)
	}

	if err = cfg.policy.CheckFee(estimate); err != nil {
		return nil, p.fail(net, art, StageEstimate, common.Hash{}, err)
	}

	return &plan{art: art, id: id, args: cfg.args, estimate: estimate}, nil
}

func (p *Pipeline) submit(
	ctx context.Context, pl *plan, client evm.OnchainClient,
) (common.Address, *types.Transaction, error) {
	opts, err := pl.id.TransactOpts(ctx)
	if err != nil {
		return common.Address{}, nil, err
	}

	pl.estimate.ApplyEstimate(opts)

	address, tx, _, err := bind.DeployContract(opts, pl.art.ABI, pl.art.Bytecode, client, pl.args...)
	if err != nil {
		return common.Address{}, nil, err
	}

	return address, tx, nil
}

func (p *Pipeline) confirm(ctx context.Context, net *evm.Network, tx *types.Transaction) (*types.Receipt, error) {
	if p.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.confirmTimeout)
		defer cancel()
	}

	return net.Confirm(ctx, tx)
}

// fail logs err and wraps it into a DeploymentError. Errors caused by the network closing or by a
// deadline are normalised to evm.ErrNetworkClosed and ErrTimeout.
func (p *Pipeline) fail(
	net *evm.Network, art *artifact.Descriptor, stage Stage, txHash common.Hash, err error,
) *DeploymentError {
	switch {
	case errors.Is(err, evm.ErrNetworkClosed):
	case net.Closed():
		err = fmt.Errorf("%w: %w", evm.ErrNetworkClosed, err)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	derr := &DeploymentError{
		Artifact: art.String(),
		Stage:    stage,
		TxHash:   txHash,
		Cause:    err,
	}

	p.lggr.Errorw("Deployment failed",
		"networkID", net.ID().String(), "artifact", art.String(), "stage", string(stage), "error", err,
	)

	return derr
}

// paidFee returns the fee charged for tx, or nil when the receipt does not report a gas price.
func paidFee(receipt *types.Receipt, tx *types.Transaction) *big.Int {
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	if price == nil {
		return nil
	}

	return new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed))
}
