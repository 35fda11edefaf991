package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/google/uuid"

	chaincommon "github.com/smartcontractkit/chainlink-contract-harness/chain/internal/common"
)

// Network is an ephemeral EVM network owned by exactly one test session.
//
// The network owns the resources acquired while provisioning it (an in-memory backend, a
// container, ...) as a stack of closers. Close releases them in reverse order of registration and
// runs at most once no matter how many times, or from how many goroutines, it is called.
type Network struct {
	Selector uint64

	Client  OnchainClient
	Confirm ConfirmFunc

	id     uuid.UUID
	ctx    context.Context //nolint:containedctx // lifetime of the network, cancelled on Close
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	closers   []func(context.Context) error
	closeOnce sync.Once
	closeErr  error
}

// NewNetwork returns an open network with a fresh identifier.
func NewNetwork(selector uint64, client OnchainClient, confirm ConfirmFunc) *Network {
	ctx, cancel := context.WithCancelCause(context.Background())

	return &Network{
		Selector: selector,
		Client:   client,
		Confirm:  confirm,
		id:       uuid.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID uniquely identifies this network instance. Two provisioning calls never share an ID even
// when they share a chain selector.
func (n *Network) ID() uuid.UUID {
	return n.id
}

// ChainSelector returns the chain selector of the network
func (n *Network) ChainSelector() uint64 {
	return n.Selector
}

// String returns network name and selector "<name> (<selector>)"
func (n *Network) String() string {
	return chaincommon.ChainMetadata{Selector: n.Selector}.String()
}

// Name returns the name of the network
func (n *Network) Name() string {
	return chaincommon.ChainMetadata{Selector: n.Selector}.Name()
}

// Family returns the family of the network
func (n *Network) Family() string {
	return chaincommon.ChainMetadata{Selector: n.Selector}.Family()
}

// ChainID returns the EVM chain id the network signs transactions for.
func (n *Network) ChainID() (*big.Int, error) {
	return chaincommon.ChainMetadata{Selector: n.Selector}.EVMChainID()
}

// OnClose registers fn to run when the network closes. Closers run in reverse order of
// registration. If the network is already closed fn runs immediately and its error is returned.
func (n *Network) OnClose(fn func(ctx context.Context) error) error {
	n.mu.Lock()
	if n.ctx.Err() == nil {
		n.closers = append(n.closers, fn)
		n.mu.Unlock()

		return nil
	}
	n.mu.Unlock()

	return fn(context.Background())
}

// Close cancels every context bound to the network and releases its resources. Only the first
// call does any work; later calls return the result of the first one.
func (n *Network) Close(ctx context.Context) error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.cancel(ErrNetworkClosed)
		closers := slices.Clone(n.closers)
		n.closers = nil
		n.mu.Unlock()

		var errs []error
		for _, fn := range slices.Backward(closers) {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if err := errors.Join(errs...); err != nil {
			n.closeErr = fmt.Errorf("close network %s: %w", n.id, err)
		}
	})

	return n.closeErr
}

// Closed reports whether Close has been called.
func (n *Network) Closed() bool {
	return n.ctx.Err() != nil
}

// Done is closed when the network closes.
func (n *Network) Done() <-chan struct{} {
	return n.ctx.Done()
}

// Err returns ErrNetworkClosed once the network is closed and nil before.
func (n *Network) Err() error {
	if n.Closed() {
		return ErrNetworkClosed
	}

	return nil
}

// Bind returns a context derived from ctx that is also cancelled, with ErrNetworkClosed as its
// cause, when the network closes. The returned cancel func must be called to release it.
func (n *Network) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancelCause(ctx)
	if n.Closed() {
		cancel(ErrNetworkClosed)
	}

	stop := context.AfterFunc(n.ctx, func() {
		cancel(ErrNetworkClosed)
	})

	return bound, func() {
		stop()
		cancel(context.Canceled)
	}
}
