package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

var (
	// fileCfg is the config that is loaded from the testdata/config.yml file.
	fileCfg = &Config{
		Artifact: ArtifactConfig{
			Dir:     "out/debug",
			Name:    "storage",
			Layout:  "flat",
			Version: "1.2.0",
		},
		Network: NetworkConfig{
			Provider:       ProviderAnvil,
			BlockTime:      2 * time.Second,
			ConfirmTimeout: 30 * time.Second,
			Anvil: AnvilConfig{
				Image: "ghcr.io/foundry-rs/foundry:stable",
				Port:  "8545",
			},
		},
		Funding: funding.Config{
			Identities:       2,
			CoinsPerIdentity: 3,
			AmountPerCoin:    500_000_000,
			Mnemonic:         funding.DefaultMnemonic,
		},
		Deploy: DeployConfig{
			TxPolicy: evm.TxPolicy{
				GasLimit: 3_000_000,
				MaxFee:   big.NewInt(10_000_000_000_000_000),
			},
			ConstructorArgs: []string{"42"},
		},
		Log: LogConfig{Level: "debug"},
	}

	// defaultCfg is the config loaded when neither a file nor the environment set a value.
	defaultCfg = &Config{
		Network: NetworkConfig{Provider: ProviderSimulated},
		Funding: funding.DefaultConfig(),
		Log:     LogConfig{Level: "info"},
	}

	// envVars is the environment variables that used to set the config.
	envVars = map[string]string{
		"HARNESS_ARTIFACT_DIR":               "build",
		"HARNESS_ARTIFACT_NAME":              "counter",
		"HARNESS_NETWORK_PROVIDER":           "simulated",
		"HARNESS_NETWORK_CONFIRM_TIMEOUT":    "5s",
		"HARNESS_FUNDING_IDENTITIES":         "4",
		"HARNESS_FUNDING_COINS_PER_IDENTITY": "2",
		"HARNESS_DEPLOY_MAX_FEE":             "123",
		"HARNESS_DEPLOY_CONSTRUCTOR_ARGS":    "1,0x2",
		"HARNESS_LOG_LEVEL":                  "warn",
	}

	legacyEnvVars = map[string]string{
		"FOUNDRY_PROFILE": "ci",
		"MNEMONIC":        "legal winner thank year wave sausage worth useful legal winner thank yellow",
		"LOG_LEVEL":       "error",
	}
)

func Test_Load(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	tests := []struct {
		name       string
		beforeFunc func(t *testing.T)
		givePath   string
		want       func() *Config
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     func() *Config { return fileCfg },
		},
		{
			name:     "load from empty file",
			givePath: "./testdata/empty.yml",
			want:     func() *Config { return defaultCfg },
		},
		{
			name: "override with env",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/config.yml",
			want: func() *Config {
				cfg := *fileCfg
				cfg.Artifact.Dir = "build"
				cfg.Artifact.Name = "counter"
				cfg.Network.Provider = ProviderSimulated
				cfg.Network.ConfirmTimeout = 5 * time.Second
				cfg.Funding.Identities = 4
				cfg.Funding.CoinsPerIdentity = 2
				cfg.Deploy.TxPolicy.MaxFee = big.NewInt(123)
				cfg.Deploy.ConstructorArgs = []string{"1", "0x2"}
				cfg.Log.Level = "warn"

				return &cfg
			},
		},
		{
			name: "fallback to env when file not found",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, legacyEnvVars)
			},
			givePath: "./testdata/missing.yml",
			want: func() *Config {
				cfg := *defaultCfg
				cfg.Artifact.Profile = "ci"
				cfg.Funding.Mnemonic = legacyEnvVars["MNEMONIC"]
				cfg.Log.Level = "error"

				return &cfg
			},
		},
	}

	for _, tt := range tests { //nolint:paralleltest // see comment in setupEnvVars
		t.Run(tt.name, func(t *testing.T) {
			if tt.beforeFunc != nil {
				tt.beforeFunc(t)
			}

			got, err := Load(tt.givePath)
			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}

func Test_LoadEnv(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, envVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "build", got.Artifact.Dir)
	assert.Equal(t, uint(4), got.Funding.Identities)
	assert.Equal(t, uint(2), got.Funding.CoinsPerIdentity)
	assert.Equal(t, funding.DefaultConfig().AmountPerCoin, got.Funding.AmountPerCoin)
	assert.Equal(t, "123", got.Deploy.TxPolicy.MaxFee.String())
	assert.Equal(t, 5*time.Second, got.Network.ConfirmTimeout)
}

func Test_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		givePath string
		want     func(t *testing.T, got *Config)
		wantErr  string
	}{
		{
			name:     "yaml",
			givePath: "./testdata/config.yml",
			want: func(t *testing.T, got *Config) {
				t.Helper()

				assert.Equal(t, fileCfg, got)
			},
		},
		{
			name:     "toml",
			givePath: "./testdata/config.toml",
			want: func(t *testing.T, got *Config) {
				t.Helper()

				assert.Equal(t, "project", got.Artifact.Root)
				assert.Equal(t, "foundry", got.Artifact.Layout)
				assert.Equal(t, uint64(30_000_000), got.Network.BlockGasLimit)
				assert.Equal(t, "1000000000", got.Deploy.TxPolicy.GasTipCap.String())
				assert.Nil(t, got.Deploy.TxPolicy.MaxFee)
			},
		},
		{
			name:     "missing file",
			givePath: "./testdata/invalid.yml",
			wantErr:  "no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LoadFile(tt.givePath)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.want(t, got)
		})
	}
}

func Test_LoadFile_InvalidInteger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("deploy:\n  tx_policy:\n    max_fee: lots\n"), 0o600))

	_, err := LoadFile(path)
	require.ErrorContains(t, err, `invalid integer "lots"`)
}

func Test_YAML_Roundtrip(t *testing.T) {
	t.Parallel()

	b, err := yaml.Marshal(fileCfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fileCfg, got)
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    func(cfg *Config)
		wantErr string
	}{
		{
			name: "valid",
			give: func(*Config) {},
		},
		{
			name:    "unknown provider",
			give:    func(cfg *Config) { cfg.Network.Provider = "ganache" },
			wantErr: `unknown network provider "ganache"`,
		},
		{
			name:    "negative duration",
			give:    func(cfg *Config) { cfg.Network.ConfirmTimeout = -time.Second },
			wantErr: "durations cannot be negative",
		},
		{
			name:    "no identities",
			give:    func(cfg *Config) { cfg.Funding.Identities = 0 },
			wantErr: "invalid funding config",
		},
		{
			name:    "negative max fee",
			give:    func(cfg *Config) { cfg.Deploy.TxPolicy.MaxFee = big.NewInt(-1) },
			wantErr: "invalid transaction policy",
		},
		{
			name:    "bad log level",
			give:    func(cfg *Config) { cfg.Log.Level = "loud" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := *fileCfg
			cfg.Deploy.TxPolicy = evm.TxPolicy{}
			tt.give(&cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_ArtifactConfig_Source(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "foundry.toml"),
		[]byte("[profile.default]\nout = \"build\"\n"), 0o600,
	))

	tests := []struct {
		name    string
		give    ArtifactConfig
		wantDir string
		wantIs  error
	}{
		{
			name:    "explicit dir",
			give:    ArtifactConfig{Dir: "out/debug", Root: root, Name: "storage"},
			wantDir: "out/debug",
		},
		{
			name:    "resolved from foundry.toml",
			give:    ArtifactConfig{Root: root, Name: "Storage", Layout: "foundry"},
			wantDir: filepath.Join(root, "build"),
		},
		{
			name:   "neither dir nor root",
			give:   ArtifactConfig{Name: "storage"},
			wantIs: artifact.ErrArtifactNotFound,
		},
		{
			name:   "root without foundry.toml",
			give:   ArtifactConfig{Root: t.TempDir(), Name: "storage"},
			wantIs: artifact.ErrArtifactNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.give.Source()
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, got.Dir)
			assert.Equal(t, tt.give.Name, got.Name)
			assert.Equal(t, artifact.Layout(tt.give.Layout), got.Layout)
		})
	}
}

// setupEnvVars sets up the environment variables for the test.
//
// CAUTION: Because this function uses t.Setenv which affects the entire process, tests which call
// this function cannot be run in parallel.
func setupEnvVars(t *testing.T, envVars map[string]string) {
	t.Helper()

	for key, value := range envVars {
		t.Setenv(key, value)
	}
}
