package provider

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

var testChainID = big.NewInt(1337)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func Test_TransactorFromRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		giveKey  string
		wantFrom common.Address
		wantErr  string
	}{
		{
			name:     "anvil faucet key",
			giveKey:  anvilFaucetPrivateKey,
			wantFrom: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		},
		{
			name:    "invalid key",
			giveKey: "zz",
			wantErr: "failed to convert private key to ECDSA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := TransactorFromRaw(tt.giveKey)

			got, err := gen.Generate(testChainID)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				_, err = gen.SignHash(make([]byte, 32))
				require.ErrorContains(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, got.From)

			assertSignsAs(t, gen, tt.wantFrom)
		})
	}
}

func Test_TransactorRandom(t *testing.T) {
	t.Parallel()

	gen := TransactorRandom()

	first, err := gen.Generate(testChainID)
	require.NoError(t, err)

	second, err := gen.Generate(testChainID)
	require.NoError(t, err)

	assert.Equal(t, first.From, second.From)
	assertSignsAs(t, gen, first.From)

	other, err := TransactorRandom().Generate(testChainID)
	require.NoError(t, err)
	assert.NotEqual(t, first.From, other.From)
}

func Test_TransactorFromSeed(t *testing.T) {
	t.Parallel()

	defaultSeed, err := MnemonicSeed(funding.DefaultMnemonic)
	require.NoError(t, err)

	abandonSeed, err := MnemonicSeed(abandonMnemonic)
	require.NoError(t, err)

	tests := []struct {
		name      string
		giveSeed  []byte
		giveIndex uint32
		wantFrom  common.Address
		wantErr   string
	}{
		{
			name:     "first development account",
			giveSeed: defaultSeed,
			wantFrom: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		},
		{
			name:      "second development account",
			giveSeed:  defaultSeed,
			giveIndex: 1,
			wantFrom:  common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		},
		{
			name:      "first development account past the anvil accounts",
			giveSeed:  defaultSeed,
			giveIndex: 10,
			wantFrom:  common.HexToAddress("0xBcd4042DE499D14e55001CcbB24a551F3b954096"),
		},
		{
			name:     "other mnemonic",
			giveSeed: abandonSeed,
			wantFrom: common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"),
		},
		{
			name:    "empty seed",
			wantErr: "seed is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := TransactorFromSeed(tt.giveSeed, tt.giveIndex)

			got, err := gen.Generate(testChainID)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, got.From)

			assertSignsAs(t, gen, tt.wantFrom)
		})
	}
}

func Test_DerivationPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "m/44'/60'/0'/0/0", DerivationPath(0).String())
	assert.Equal(t, "m/44'/60'/0'/0/12", DerivationPath(12).String())
	assert.Equal(t, "m/44'/60'/0'/0/0", accounts.DefaultBaseDerivationPath.String())
}

func Test_MnemonicSeed(t *testing.T) {
	t.Parallel()

	_, err := MnemonicSeed("not a mnemonic")
	require.ErrorContains(t, err, "invalid mnemonic")

	seed, err := MnemonicSeed(funding.DefaultMnemonic)
	require.NoError(t, err)
	assert.Len(t, seed, 64)
}

func Test_deriveIdentities(t *testing.T) {
	t.Parallel()

	cfg := funding.Config{Identities: 3}

	got, err := deriveIdentities(cfg, testChainID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	again, err := deriveIdentities(cfg, testChainID, 0)
	require.NoError(t, err)

	seen := make(map[common.Address]struct{})
	for i, id := range got {
		assert.Equal(t, uint(i), id.Index) //nolint:gosec // test indexes are small
		assert.Equal(t, again[i].Address, id.Address)
		assert.True(t, id.CanSign())
		seen[id.Address] = struct{}{}
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), got[0].Address)

	shifted, err := deriveIdentities(cfg, testChainID, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(0), shifted[0].Index)
	assert.Equal(t, got[1].Address, shifted[0].Address)
	assert.Equal(t, got[2].Address, shifted[1].Address)

	other, err := deriveIdentities(funding.Config{Identities: 1, Mnemonic: abandonMnemonic}, testChainID, 0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), other[0].Address)
}

// assertSignsAs checks that gen signs hashes with the key of want.
func assertSignsAs(t *testing.T, gen SignerGenerator, want common.Address) {
	t.Helper()

	hash := crypto.Keccak256([]byte("harness"))

	sig, err := gen.SignHash(hash)
	require.NoError(t, err)

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, want, crypto.PubkeyToAddress(*pub))
}
