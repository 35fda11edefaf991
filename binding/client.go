// Package binding turns a deployed contract and its interface description into a client whose
// operations are the methods of the interface.
//
// The binding is built at runtime from the parsed ABI, without generated code. Creating a client
// performs no network I/O: the interface is checked against the runtime code captured when the
// contract was deployed.
package binding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/deploy"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

var (
	// ErrInterfaceMismatch is returned when the interface description declares methods the
	// deployed code does not dispatch.
	ErrInterfaceMismatch = errors.New("interface mismatch")
	// ErrUnknownMethod is returned when a method is not part of the interface.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrArgumentMismatch is returned when arguments or results do not match the method's types.
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrReadOnlyMethod is returned when a transaction is sent to a view or pure method.
	ErrReadOnlyMethod = errors.New("method is read-only")
)

// Method is one operation of a ContractClient.
type Method struct {
	// Name is unique within the client. Overloaded methods get a numeric suffix ("foo0").
	Name string
	// Sig is the canonical signature, e.g. "store(uint256)".
	Sig      string
	Inputs   abi.Arguments
	Outputs  abi.Arguments
	ReadOnly bool
	Payable  bool
}

func newMethod(m abi.Method) Method {
	return Method{
		Name:     m.Name,
		Sig:      m.Sig,
		Inputs:   m.Inputs,
		Outputs:  m.Outputs,
		ReadOnly: m.IsConstant(),
		Payable:  m.IsPayable(),
	}
}

// String returns the signature followed by the output types, e.g. "retrieve() returns (uint256)".
func (m Method) String() string {
	if len(m.Outputs) == 0 {
		return m.Sig
	}

	outs := make([]string, 0, len(m.Outputs))
	for _, o := range m.Outputs {
		outs = append(outs, o.Type.String())
	}

	return fmt.Sprintf("%s returns (%s)", m.Sig, strings.Join(outs, ","))
}

// ContractClient calls the methods of one deployed contract as one identity. It does not own the
// network and stops working once the network is closed.
type ContractClient struct {
	contract deploy.DeployedContract
	id       evm.Identity
	iface    abi.ABI
	methods  map[string]Method
	bound    *bind.BoundContract
	policy   evm.TxPolicy
	lggr     logger.Logger
}

// Option configures a ContractClient.
type Option func(*ContractClient)

// WithTxPolicy sets the policy of the transactions sent by the client.
func WithTxPolicy(policy evm.TxPolicy) Option {
	return func(c *ContractClient) {
		c.policy = policy
	}
}

// WithLogger sets the logger of the client.
func WithLogger(lggr logger.Logger) Option {
	return func(c *ContractClient) {
		c.lggr = lggr
	}
}

// NewContractClient binds iface to contract for id. It returns ErrInterfaceMismatch, naming the
// offending signatures, when the code deployed at the contract's address does not dispatch every
// method of iface.
func NewContractClient(
	iface abi.ABI, contract deploy.DeployedContract, id evm.Identity, opts ...Option,
) (*ContractClient, error) {
	if contract.Network == nil {
		return nil, errors.New("contract has no network")
	}
	if contract.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is empty", deploy.ErrNotDeployed)
	}
	if len(contract.RuntimeCode) == 0 {
		return nil, fmt.Errorf("%w: no runtime code recorded for %s", deploy.ErrNotDeployed, contract.ID())
	}

	if missing := artifact.MissingSelectors(iface, contract.RuntimeCode); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s does not dispatch %s",
			ErrInterfaceMismatch, contract.ID(), strings.Join(missing, ", "),
		)
	}

	client := contract.Network.Client
	c := &ContractClient{
		contract: contract,
		id:       id,
		iface:    iface,
		methods:  make(map[string]Method, len(iface.Methods)),
		bound:    bind.NewBoundContract(contract.Address, iface, client, client, client),
		lggr:     logger.Nop(),
	}
	for name, m := range iface.Methods {
		c.methods[name] = newMethod(m)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lggr = c.lggr.Named("binding").With("contract", contract.ID())

	return c, nil
}

// Contract returns the deployed contract the client is bound to.
func (c *ContractClient) Contract() deploy.DeployedContract {
	return c.contract
}

// Address returns the address of the contract.
func (c *ContractClient) Address() common.Address {
	return c.contract.Address
}

// Identity returns the identity the client signs with.
func (c *ContractClient) Identity() evm.Identity {
	return c.id
}

// WithIdentity returns a copy of the client signing with id.
func (c *ContractClient) WithIdentity(id evm.Identity) *ContractClient {
	cp := *c
	cp.id = id

	return &cp
}

// Methods returns the operations of the client sorted by name.
func (c *ContractClient) Methods() []Method {
	methods := make([]Method, 0, len(c.methods))
	for _, m := range c.methods {
		methods = append(methods, m)
	}

	slices.SortFunc(methods, func(a, b Method) int {
		return strings.Compare(a.Name, b.Name)
	})

	return methods
}

// Method returns the operation called name.
func (c *ContractClient) Method(name string) (Method, error) {
	m, ok := c.methods[name]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q is not a method of %s", ErrUnknownMethod, name, c.contract.ID())
	}

	return m, nil
}

// Call executes name against the latest block without creating a transaction and returns the
// decoded results.
func (c *ContractClient) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	if _, _, err := c.prepare(name, args); err != nil {
		return nil, err
	}

	net := c.contract.Network
	ctx, cancel := net.Bind(ctx)
	defer cancel()

	var out []any
	err := c.bound.Call(&bind.CallOpts{Context: ctx, From: c.id.Address}, &out, name, args...)
	if err != nil {
		return nil, c.networkErr(fmt.Errorf("call %s: %w", name, err))
	}

	return out, nil
}

// Transact sends a transaction calling name and waits for the network to confirm it.
func (c *ContractClient) Transact(ctx context.Context, name string, args ...any) (*types.Receipt, error) {
	return c.TransactWithPolicy(ctx, evm.TxPolicy{}, name, args...)
}

// TransactWithPolicy is Transact with the fields set in policy overriding the client's policy.
func (c *ContractClient) TransactWithPolicy(
	ctx context.Context, policy evm.TxPolicy, name string, args ...any,
) (*types.Receipt, error) {
	m, input, err := c.prepare(name, args)
	if err != nil {
		return nil, err
	}
	if m.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyMethod, m.Sig)
	}

	policy = c.policy.Merge(policy)
	if err = policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Value != nil && policy.Value.Sign() > 0 && !m.Payable {
		return nil, fmt.Errorf("%w: %s is not payable", ErrArgumentMismatch, m.Sig)
	}

	net := c.contract.Network
	ctx, cancel := net.Bind(ctx)
	defer cancel()

	opts, err := c.id.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}

	to := c.contract.Address
	estimate, err := policy.Estimate(ctx, net.Client, ethereum.CallMsg{From: c.id.Address, To: &to, Data: input})
	if err != nil {
		return nil, c.networkErr(fmt.Errorf("transact %s: %w", m.Sig, err))
	}
	if err = policy.CheckFee(estimate); err != nil {
		return nil, err
	}
	estimate.ApplyEstimate(opts)

	tx, err := c.bound.RawTransact(opts, input)
	if err != nil {
		return nil, c.networkErr(fmt.Errorf("transact %s: %w", m.Sig, err))
	}

	receipt, err := net.Confirm(ctx, tx)
	if err != nil {
		return receipt, c.networkErr(fmt.Errorf("transact %s: %w", m.Sig, err))
	}

	c.lggr.Debugw("Transaction confirmed",
		"method", m.Sig, "tx", tx.Hash().Hex(), "block", receipt.BlockNumber.Uint64(), "gasUsed", receipt.GasUsed,
	)

	return receipt, nil
}

// CallAs calls name and returns its single result as a T.
func CallAs[T any](ctx context.Context, c *ContractClient, name string, args ...any) (T, error) {
	var zero T

	m, err := c.Method(name)
	if err != nil {
		return zero, err
	}
	if len(m.Outputs) != 1 {
		return zero, fmt.Errorf("%w: %s returns %d values, want 1", ErrArgumentMismatch, m.Sig, len(m.Outputs))
	}

	out, err := c.Call(ctx, name, args...)
	if err != nil {
		return zero, err
	}

	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returns %T, not %T", ErrArgumentMismatch, m.Sig, out[0], zero)
	}

	return v, nil
}

// prepare checks that the network is open and that name exists, then encodes args for it.
func (c *ContractClient) prepare(name string, args []any) (Method, []byte, error) {
	if err := c.contract.Network.Err(); err != nil {
		return Method{}, nil, err
	}

	m, err := c.Method(name)
	if err != nil {
		return Method{}, nil, err
	}

	input, err := c.iface.Pack(name, args...)
	if err != nil {
		return Method{}, nil, fmt.Errorf("%w: %s: %w", ErrArgumentMismatch, m.Sig, err)
	}

	return m, input, nil
}

// networkErr normalises errors caused by the network closing or by a deadline.
func (c *ContractClient) networkErr(err error) error {
	switch {
	case errors.Is(err, evm.ErrNetworkClosed):
		return err
	case c.contract.Network.Closed():
		return fmt.Errorf("%w: %w", evm.ErrNetworkClosed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", deploy.ErrTimeout, err)
	}

	return err
}
