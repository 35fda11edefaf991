// Package funding describes how the identities of an ephemeral network are funded and selects the
// identity a test session deploys and transacts with.
package funding

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/params"
)

const (
	// DefaultMnemonic is the well-known development mnemonic. Its BIP-44 accounts are the ones
	// Anvil and Hardhat pre-fund; the keys are public and must never hold real value.
	DefaultMnemonic = "test test test test test test test test test test test junk"

	// MaxIdentities bounds the number of identities a single network can be provisioned with.
	MaxIdentities = 256
)

// WeiPerUnit is the number of wei in one value unit. A value unit is 1 gwei.
var WeiPerUnit = big.NewInt(params.GWei)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid funding config")
	// ErrNoFundedIdentity is returned when no identity is available for selection.
	ErrNoFundedIdentity = errors.New("no funded identity")
	// ErrInsufficientBalance is returned when an identity cannot pay for an operation.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Config is the funding requested from a provider: Identities accounts, each credited with
// CoinsPerIdentity coins of AmountPerCoin value units.
type Config struct {
	Identities       uint   `mapstructure:"identities" yaml:"identities"`
	CoinsPerIdentity uint   `mapstructure:"coins_per_identity" yaml:"coins_per_identity"`
	AmountPerCoin    uint64 `mapstructure:"amount_per_coin" yaml:"amount_per_coin"`
	// Optional: Mnemonic seeds the identity keys. Defaults to DefaultMnemonic.
	Mnemonic string `mapstructure:"mnemonic" yaml:"mnemonic,omitempty"`
}

// DefaultConfig returns one identity holding a single coin of 1_000_000_000 value units.
func DefaultConfig() Config {
	return Config{
		Identities:       1,
		CoinsPerIdentity: 1,
		AmountPerCoin:    1_000_000_000,
	}
}

// Validate checks that the config can back a deployment: at least one identity must be requested
// and the mnemonic, when set, must be a valid BIP-39 mnemonic.
func (c Config) Validate() error {
	if c.Identities == 0 {
		return fmt.Errorf("%w: at least one identity is required", ErrInvalidConfig)
	}
	if c.Identities > MaxIdentities {
		return fmt.Errorf("%w: %d identities requested, at most %d are supported",
			ErrInvalidConfig, c.Identities, MaxIdentities,
		)
	}
	if c.Mnemonic != "" && !bip39.IsMnemonicValid(normalizeMnemonic(c.Mnemonic)) {
		return fmt.Errorf("%w: mnemonic is not a valid BIP-39 mnemonic", ErrInvalidConfig)
	}

	return nil
}

// MnemonicOrDefault returns the normalized mnemonic the identity keys are derived from.
func (c Config) MnemonicOrDefault() string {
	if c.Mnemonic == "" {
		return DefaultMnemonic
	}

	return normalizeMnemonic(c.Mnemonic)
}

// BalancePerIdentity returns CoinsPerIdentity x AmountPerCoin in value units.
func (c Config) BalancePerIdentity() *big.Int {
	coins := new(big.Int).SetUint64(uint64(c.CoinsPerIdentity))

	return coins.Mul(coins, new(big.Int).SetUint64(c.AmountPerCoin))
}

// BalancePerIdentityWei returns BalancePerIdentity in wei.
func (c Config) BalancePerIdentityWei() *big.Int {
	return UnitsToWei(c.BalancePerIdentity())
}

// CoinWei returns the value of a single coin in wei.
func (c Config) CoinWei() *big.Int {
	return UnitsToWei(new(big.Int).SetUint64(c.AmountPerCoin))
}

// UnitsToWei converts value units to wei.
func UnitsToWei(units *big.Int) *big.Int {
	return new(big.Int).Mul(units, WeiPerUnit)
}

// WeiToUnits converts wei to whole value units, rounding down.
func WeiToUnits(wei *big.Int) *big.Int {
	return new(big.Int).Quo(wei, WeiPerUnit)
}

func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(m), " ")
}
