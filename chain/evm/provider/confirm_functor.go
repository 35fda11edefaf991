package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
)

// DefaultConfirmTimeout bounds how long a confirmation may take when no timeout is configured.
const DefaultConfirmTimeout = 1 * time.Minute

// ConfirmFunctor is an interface for creating a confirmation function for transactions on the
// EVM network.
type ConfirmFunctor interface {
	// Generate returns a function that confirms transactions on the EVM network.
	Generate(selector uint64, client evm.OnchainClient, from common.Address) (evm.ConfirmFunc, error)
}

// committer is implemented by clients of networks that only mine on demand.
type committer interface {
	Commit() common.Hash
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls the client for the receipt until the
// transaction is mined or waitMinedTimeout elapses.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     1 * time.Second, // the same value we have in bind.WaitMined hardcoded in "go-ethereum"
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

// WithTickInterval sets the receipt polling interval of ConfirmFuncGeth.
func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

// confirmFuncGeth implements the ConfirmFunctor interface which generates a confirmation function
// for transactions using the Geth client.
type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

// Generate returns a function that confirms transactions using the Geth client.
func (g *confirmFuncGeth) Generate(
	selector uint64, client evm.OnchainClient, from common.Address,
) (evm.ConfirmFunc, error) {
	return func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		if tx == nil {
			return nil, fmt.Errorf("tx was nil, nothing to confirm for selector: %d", selector)
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("tx %s failed to confirm for selector %d: %w",
				tx.Hash().Hex(), selector, err,
			)
		}

		return checkReceipt(ctxTimeout, selector, client, from, tx, receipt)
	}, nil
}

// ConfirmFuncCommit returns a ConfirmFunctor for networks that only produce blocks on demand, such
// as the simulated backend. Every confirmation first commits a block holding the pending
// transactions. The client passed to Generate must be able to commit blocks.
func ConfirmFuncCommit(waitMinedTimeout time.Duration) ConfirmFunctor {
	return &confirmFuncCommit{waitMinedTimeout: waitMinedTimeout}
}

type confirmFuncCommit struct {
	waitMinedTimeout time.Duration
}

// Generate returns a function that commits a block then waits for the receipt of the transaction.
func (g *confirmFuncCommit) Generate(
	selector uint64, client evm.OnchainClient, from common.Address,
) (evm.ConfirmFunc, error) {
	c, ok := client.(committer)
	if !ok {
		return nil, fmt.Errorf("expected client to be able to commit blocks, got %T", client)
	}

	return func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		if tx == nil {
			return nil, fmt.Errorf("tx was nil, nothing to confirm for selector: %d", selector)
		}

		// Ensure the transaction is mined by committing a new block
		c.Commit()

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := bind.WaitMined(ctxTimeout, client, tx)
		if err != nil {
			return nil, fmt.Errorf("tx %s failed to confirm for selector %d: %w",
				tx.Hash().Hex(), selector, err,
			)
		}

		return checkReceipt(ctxTimeout, selector, client, from, tx, receipt)
	}, nil
}

// checkReceipt returns receipt if the transaction succeeded and an error carrying the revert
// reason otherwise. The reason is replayed as the signer of tx, from is used only when the signer
// cannot be recovered.
func checkReceipt(
	ctx context.Context,
	selector uint64,
	client evm.OnchainClient,
	from common.Address,
	tx *types.Transaction,
	receipt *types.Receipt,
) (*types.Receipt, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt was nil for tx %s for selector %d", tx.Hash().Hex(), selector)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason, err := getErrorReasonFromTx(ctx, client, txSender(tx, from), tx, receipt)
		if err == nil && reason != "" {
			return receipt, fmt.Errorf("%w: tx %s for selector %d: %s",
				evm.ErrTxReverted, tx.Hash().Hex(), selector, reason,
			)
		}

		return receipt, fmt.Errorf("%w: tx %s for selector %d, could not decode error reason",
			evm.ErrTxReverted, tx.Hash().Hex(), selector,
		)
	}

	return receipt, nil
}

// txSender returns the address that signed tx, or fallback when the signature cannot be
// recovered.
func txSender(tx *types.Transaction, fallback common.Address) common.Address {
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return fallback
	}

	return sender
}

// WaitMinedWithInterval is a custom function that allows to get receipts faster for networks with
// instant blocks.
func WaitMinedWithInterval(
	ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash,
) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()

	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-queryTicker.C:
		}
	}
}
