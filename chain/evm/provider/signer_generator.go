package provider

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/stephenlacy/go-ethereum-hdwallet"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

// SignerGenerator is an interface for generating geth's *bind.TransactOpts instances and
// providing hash signing capabilities. These instances are used to sign transactions using geth
// bindings, and the SignHash method allows signing of arbitrary hashes.
type SignerGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
	SignHash(hash []byte) ([]byte, error)
}

var (
	_ SignerGenerator = (*transactorFromRaw)(nil)
	_ SignerGenerator = (*transactorRandom)(nil)
	_ SignerGenerator = (*transactorFromSeed)(nil)
)

// TransactorFromRaw returns a generator which creates a transactor from a raw hex encoded private
// key without 0x prefix.
func TransactorFromRaw(privKey string) SignerGenerator {
	return &transactorFromRaw{privKey: privKey}
}

// transactorFromRaw is a SignerGenerator that creates a transactor from a private key.
type transactorFromRaw struct {
	privKey string
}

// Generate parses the hex encoded private key and returns the bind transactor options.
func (g *transactorFromRaw) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// SignHash signs a hash using the private key stored in the generator.
func (g *transactorFromRaw) SignHash(hash []byte) ([]byte, error) {
	privKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return signHash(hash, privKey)
}

// TransactorRandom is a SignerGenerator that creates a transactor with a random private key.
// The key is generated on first use and reused afterwards.
func TransactorRandom() SignerGenerator {
	return &transactorRandom{}
}

// transactorRandom is a SignerGenerator that creates a transactor from a random keypair.
type transactorRandom struct {
	once    sync.Once
	privKey *ecdsa.PrivateKey
	err     error
}

func (g *transactorRandom) key() (*ecdsa.PrivateKey, error) {
	g.once.Do(func() {
		g.privKey, g.err = crypto.GenerateKey()
		if g.err != nil {
			g.err = fmt.Errorf("failed to generate random private key: %w", g.err)
		}
	})

	return g.privKey, g.err
}

// Generate returns the bind transactor options of the random key.
func (g *transactorRandom) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// SignHash signs a hash using the random key.
func (g *transactorRandom) SignHash(hash []byte) ([]byte, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return signHash(hash, privKey)
}

// MnemonicSeed returns the BIP-39 seed of mnemonic with an empty passphrase.
func MnemonicSeed(mnemonic string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	return seed, nil
}

// DerivationPath returns the BIP-44 path of the Ethereum account at index, m/44'/60'/0'/0/index.
// Wallets, Anvil and Hardhat derive their accounts along the same path.
func DerivationPath(index uint32) accounts.DerivationPath {
	path := slices.Clone(accounts.DefaultBaseDerivationPath)
	path[len(path)-1] += index

	return path
}

// TransactorFromSeed returns a generator whose key is the account at DerivationPath(index) of
// the HD wallet rooted at seed.
func TransactorFromSeed(seed []byte, index uint32) SignerGenerator {
	return &transactorFromSeed{seed: seed, index: index}
}

type transactorFromSeed struct {
	seed  []byte
	index uint32

	once    sync.Once
	privKey *ecdsa.PrivateKey
	err     error
}

func (g *transactorFromSeed) key() (*ecdsa.PrivateKey, error) {
	g.once.Do(func() {
		g.privKey, g.err = deriveKey(g.seed, g.index)
	})

	return g.privKey, g.err
}

// Generate returns the bind transactor options of the derived key.
func (g *transactorFromSeed) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// SignHash signs a hash using the derived key.
func (g *transactorFromSeed) SignHash(hash []byte) ([]byte, error) {
	privKey, err := g.key()
	if err != nil {
		return nil, err
	}

	return signHash(hash, privKey)
}

func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	if len(seed) == 0 {
		return nil, errors.New("seed is empty")
	}

	wallet, err := hdwallet.NewFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create HD wallet: %w", err)
	}

	account, err := wallet.Derive(DerivationPath(index), false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account %d: %w", index, err)
	}

	privKey, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key %d: %w", index, err)
	}

	return privKey, nil
}

func signHash(hash []byte, privKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}

// deriveIdentities creates the identities requested by cfg, ordered by index. Identity i holds
// the account at derivation index first+i.
func deriveIdentities(cfg funding.Config, chainID *big.Int, first uint32) ([]evm.Identity, error) {
	seed, err := MnemonicSeed(cfg.MnemonicOrDefault())
	if err != nil {
		return nil, err
	}

	identities := make([]evm.Identity, 0, cfg.Identities)
	for i := range cfg.Identities {
		gen := TransactorFromSeed(seed, first+uint32(i)) //nolint:gosec // bounded by funding.MaxIdentities

		transactor, err := gen.Generate(chainID)
		if err != nil {
			return nil, fmt.Errorf("identity %d: %w", i, err)
		}

		identities = append(identities, evm.NewIdentity(i, transactor, gen.SignHash))
	}

	return identities, nil
}
