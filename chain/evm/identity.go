package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Identity is a funded account of an ephemeral network. Identities are ordered by Index, which is
// stable for a given mnemonic.
type Identity struct {
	Index   uint
	Address common.Address

	transactor *bind.TransactOpts
	signHash   func([]byte) ([]byte, error)
}

// NewIdentity returns the identity signing with transactor. signHash may be nil.
func NewIdentity(index uint, transactor *bind.TransactOpts, signHash func([]byte) ([]byte, error)) Identity {
	return Identity{
		Index:      index,
		Address:    transactor.From,
		transactor: transactor,
		signHash:   signHash,
	}
}

// CanSign reports whether the identity carries a signer.
func (id Identity) CanSign() bool {
	return id.transactor != nil
}

// TransactOpts returns a copy of the identity's transactor bound to ctx, so that callers can set
// gas parameters without affecting other users of the identity.
func (id Identity) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if id.transactor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, id)
	}

	opts := *id.transactor
	opts.Context = ctx

	return &opts, nil
}

// SignHash signs an arbitrary 32 byte hash with the identity's key.
func (id Identity) SignHash(hash []byte) ([]byte, error) {
	if id.signHash == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, id)
	}

	return id.signHash(hash)
}

// String returns "identity <index> (<address>)".
func (id Identity) String() string {
	return fmt.Sprintf("identity %d (%s)", id.Index, id.Address.Hex())
}
