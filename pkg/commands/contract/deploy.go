package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-contract-harness/harness"
	"github.com/smartcontractkit/chainlink-contract-harness/internal/text"
	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

var (
	deployLong = text.LongDesc(`
		Provisions a throwaway network, funds the configured identities, deploys the configured
		artifact and prints the deployed contract. The network is torn down before the command
		returns.

		Values of the config file are overridden by HARNESS_* environment variables, which can also
		be read from the file passed with --env-file. Variables already set take precedence over the
		file.
	`)

	deployExample = text.Examples(`
		# Deploy with the settings of harness.yml
		harness contract deploy --config harness.yml

		# Read the mnemonic and other overrides from a dotenv file
		harness contract deploy -c harness.yml --env-file .env.local

		# Deploy on Anvil instead of the simulated backend
		HARNESS_NETWORK_PROVIDER=anvil HARNESS_NETWORK_ANVIL_PORT=8545 harness contract deploy -c harness.yml
	`)
)

// newDeployCmd creates the "deploy" subcommand.
func newDeployCmd(cfg Config) *cobra.Command {
	var (
		configPath string
		envFile    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Deploy an artifact into a throwaway network.",
		Long:    deployLong,
		Example: deployExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}

			return runDeploy(cmd, cfg, configPath, timeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the harness config file (required)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file holding HARNESS_* overrides")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Deadline of the whole deployment")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// runDeploy executes the deploy command logic.
func runDeploy(cmd *cobra.Command, cfg Config, configPath string, timeout time.Duration) (err error) {
	deps := cfg.deps()

	hcfg, err := deps.ConfigLoader(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lggr := cfg.Logger
	if hcfg.Log.Level != "" {
		lvl, perr := logger.ParseLevel(hcfg.Log.Level)
		if perr != nil {
			return perr
		}
		if lggr, err = (&logger.Config{Level: lvl}).New(); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	sess, err := deps.NewSession(ctx, harness.WithConfig(hcfg), harness.WithLogger(lggr))
	if err != nil {
		return fmt.Errorf("failed to deploy: %w", err)
	}
	defer func() {
		err = errors.Join(err, sess.Close(context.WithoutCancel(ctx)))
	}()

	c := sess.Contract
	cmd.Printf("Deployed %s\n", c.String())
	cmd.Printf("%-12s %s\n", "Network:", sess.Network.String())
	cmd.Printf("%-12s %s\n", "Deployer:", c.Deployer.Address.Hex())
	cmd.Printf("%-12s %s\n", "Transaction:", c.TxHash.Hex())
	cmd.Printf("%-12s %d\n", "Block:", c.BlockNumber)
	cmd.Printf("%-12s %d\n", "Gas used:", c.GasUsed)
	if c.Fee != nil {
		cmd.Printf("%-12s %s wei\n", "Fee:", c.Fee.String())
	}

	return nil
}
