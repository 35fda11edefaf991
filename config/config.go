// Package config loads the configuration of a harness session from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

// Network providers.
const (
	ProviderSimulated = "simulated"
	ProviderAnvil     = "anvil"
)

// ArtifactConfig locates the artifact to deploy.
type ArtifactConfig struct {
	// Dir is the build output directory. When empty it is resolved from the foundry.toml found in
	// Root for Profile.
	Dir     string `mapstructure:"dir" yaml:"dir,omitempty"`
	Root    string `mapstructure:"root" yaml:"root,omitempty"`
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`

	Name                 string `mapstructure:"name" yaml:"name"`
	Layout               string `mapstructure:"layout" yaml:"layout,omitempty"`
	Version              string `mapstructure:"version" yaml:"version,omitempty"`
	SkipConsistencyCheck bool   `mapstructure:"skip_consistency_check" yaml:"skip_consistency_check,omitempty"`
}

// Source returns the artifact source described by c.
func (c ArtifactConfig) Source() (artifact.Source, error) {
	dir := c.Dir
	if dir == "" {
		if c.Root == "" {
			return artifact.Source{}, fmt.Errorf("%w: artifact dir or root is required", artifact.ErrArtifactNotFound)
		}

		var err error
		if dir, err = artifact.ResolveDir(c.Root, c.Profile); err != nil {
			return artifact.Source{}, err
		}
	}

	return artifact.Source{
		Dir:                  dir,
		Name:                 c.Name,
		Layout:               artifact.Layout(c.Layout),
		Version:              c.Version,
		SkipConsistencyCheck: c.SkipConsistencyCheck,
	}, nil
}

// AnvilConfig configures the Anvil container.
type AnvilConfig struct {
	Image string `mapstructure:"image" yaml:"image,omitempty"`
	Port  string `mapstructure:"port" yaml:"port,omitempty"`
}

// NetworkConfig selects and configures the network provider.
type NetworkConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	// BlockTime makes the simulated network mine on its own. Zero mines on demand.
	BlockTime      time.Duration `mapstructure:"block_time" yaml:"block_time,omitempty"`
	BlockGasLimit  uint64        `mapstructure:"block_gas_limit" yaml:"block_gas_limit,omitempty"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout,omitempty"`
	Anvil          AnvilConfig   `mapstructure:"anvil" yaml:"anvil,omitempty"`
}

// DeployConfig configures the deployment pipeline.
type DeployConfig struct {
	TxPolicy        evm.TxPolicy `mapstructure:"tx_policy" yaml:"tx_policy,omitempty"`
	ConstructorArgs []string     `mapstructure:"constructor_args" yaml:"constructor_args,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the configuration of a harness session.
type Config struct {
	Artifact ArtifactConfig `mapstructure:"artifact" yaml:"artifact"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Funding  funding.Config `mapstructure:"funding" yaml:"funding"`
	Deploy   DeployConfig   `mapstructure:"deploy" yaml:"deploy"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// Validate checks the values that can be checked without touching the file system.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ProviderSimulated, ProviderAnvil}, c.Network.Provider) {
		return fmt.Errorf("unknown network provider %q, expected %q or %q",
			c.Network.Provider, ProviderSimulated, ProviderAnvil,
		)
	}
	if c.Network.BlockTime < 0 || c.Network.ConfirmTimeout < 0 {
		return errors.New("network durations cannot be negative")
	}
	if err := c.Funding.Validate(); err != nil {
		return err
	}
	if err := c.Deploy.TxPolicy.Validate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Load loads the config from the file at filePath, with environment variables taking precedence
// over the values loaded from the file. A missing file is not an error.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we fallback to using
	// environment variables
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file. The format follows the file extension.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// newViper returns a viper instance holding the defaults.
func newViper() *viper.Viper {
	v := viper.New()

	def := funding.DefaultConfig()
	v.SetDefault("network.provider", ProviderSimulated)
	v.SetDefault("funding.identities", def.Identities)
	v.SetDefault("funding.coins_per_identity", def.CoinsPerIdentity)
	v.SetDefault("funding.amount_per_coin", def.AmountPerCoin)
	v.SetDefault("log.level", "info")

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToBigIntHookFunc(),
	)))

	return cfg, err
}

var bigIntType = reflect.TypeOf(big.Int{})

// stringToBigIntHookFunc decodes decimal or 0x prefixed strings, and integers, into big.Int.
func stringToBigIntHookFunc() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != bigIntType && to != reflect.PointerTo(bigIntType) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
			if !ok {
				return nil, fmt.Errorf("invalid integer %q", v)
			}

			return n, nil
		case int:
			return big.NewInt(int64(v)), nil
		case int64:
			return big.NewInt(v), nil
		case uint64:
			return new(big.Int).SetUint64(v), nil
		}

		return data, nil
	}
}

var (
	// envBindings defines how environment variables map to configuration keys used by Viper.
	//
	// The first element in the list is the preferred environment variable name, the others are
	// names already used by the surrounding tooling for the same value.
	envBindings = map[string][]string{
		"artifact.dir":               {"HARNESS_ARTIFACT_DIR"},
		"artifact.root":              {"HARNESS_ARTIFACT_ROOT"},
		"artifact.profile":           {"HARNESS_ARTIFACT_PROFILE", "FOUNDRY_PROFILE"},
		"artifact.name":              {"HARNESS_ARTIFACT_NAME"},
		"artifact.layout":            {"HARNESS_ARTIFACT_LAYOUT"},
		"artifact.version":           {"HARNESS_ARTIFACT_VERSION"},
		"network.provider":           {"HARNESS_NETWORK_PROVIDER"},
		"network.block_time":         {"HARNESS_NETWORK_BLOCK_TIME"},
		"network.confirm_timeout":    {"HARNESS_NETWORK_CONFIRM_TIMEOUT"},
		"network.anvil.image":        {"HARNESS_NETWORK_ANVIL_IMAGE"},
		"network.anvil.port":         {"HARNESS_NETWORK_ANVIL_PORT"},
		"funding.identities":         {"HARNESS_FUNDING_IDENTITIES"},
		"funding.coins_per_identity": {"HARNESS_FUNDING_COINS_PER_IDENTITY"},
		"funding.amount_per_coin":    {"HARNESS_FUNDING_AMOUNT_PER_COIN"},
		"funding.mnemonic":           {"HARNESS_FUNDING_MNEMONIC", "MNEMONIC"},
		"deploy.tx_policy.gas_limit": {"HARNESS_DEPLOY_GAS_LIMIT"},
		"deploy.tx_policy.max_fee":   {"HARNESS_DEPLOY_MAX_FEE"},
		"deploy.constructor_args":    {"HARNESS_DEPLOY_CONSTRUCTOR_ARGS"},
		"log.level":                  {"HARNESS_LOG_LEVEL", "LOG_LEVEL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the env key to the start of the arguments
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
