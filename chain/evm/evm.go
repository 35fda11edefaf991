// Package evm holds the EVM network handle shared by the providers, the deployment pipeline and
// the contract clients.
package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNetworkClosed is returned by operations started on, or interrupted by, a closed network.
	ErrNetworkClosed = errors.New("network closed")
	// ErrNoSigner is returned when an identity without signing capability is asked to sign.
	ErrNoSigner = errors.New("identity has no signer")
	// ErrTxReverted is returned by a ConfirmFunc when the transaction was mined but reverted.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrInvalidTxPolicy is returned when a TxPolicy holds contradictory or negative values.
	ErrInvalidTxPolicy = errors.New("invalid transaction policy")
	// ErrFeeLimitExceeded is returned when the estimated fee of a transaction is above the MaxFee
	// of its policy.
	ErrFeeLimitExceeded = errors.New("fee limit exceeded")
)

// ConfirmFunc waits until tx is included in a block and returns its receipt. It returns an error
// when the transaction reverted, or when ctx ends first.
type ConfirmFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// OnchainClient is an EVM network client.
// For EVM specifically we can use existing geth interface to abstract network clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}
