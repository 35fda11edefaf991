package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// TxPolicy controls how transactions are priced. The zero value is the default policy:
//
//   - GasLimit 0: the gas limit is estimated by the network.
//   - GasTipCap nil: the tip suggested by the network.
//   - GasFeeCap nil: 2 * base fee of the latest block + tip.
//   - MaxFee nil: no ceiling on the fee a transaction may cost.
//   - Value nil: no value is transferred.
//
// Amounts are in wei.
type TxPolicy struct {
	GasLimit  uint64   `mapstructure:"gas_limit" yaml:"gas_limit"`
	GasTipCap *big.Int `mapstructure:"gas_tip_cap" yaml:"gas_tip_cap"`
	GasFeeCap *big.Int `mapstructure:"gas_fee_cap" yaml:"gas_fee_cap"`
	MaxFee    *big.Int `mapstructure:"max_fee" yaml:"max_fee"`
	Value     *big.Int `mapstructure:"value" yaml:"value"`
}

// Validate rejects negative amounts and a fee cap below the tip cap.
func (p TxPolicy) Validate() error {
	amounts := []struct {
		name string
		v    *big.Int
	}{
		{"gas tip cap", p.GasTipCap},
		{"gas fee cap", p.GasFeeCap},
		{"max fee", p.MaxFee},
		{"value", p.Value},
	}
	for _, a := range amounts {
		if a.v != nil && a.v.Sign() < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidTxPolicy, a.name)
		}
	}

	if p.GasTipCap != nil && p.GasFeeCap != nil && p.GasFeeCap.Cmp(p.GasTipCap) < 0 {
		return fmt.Errorf("%w: gas fee cap %s is below gas tip cap %s",
			ErrInvalidTxPolicy, p.GasFeeCap, p.GasTipCap,
		)
	}

	return nil
}

// Merge returns p with every field set in override replacing the one in p.
func (p TxPolicy) Merge(override TxPolicy) TxPolicy {
	if override.GasLimit != 0 {
		p.GasLimit = override.GasLimit
	}
	if override.GasTipCap != nil {
		p.GasTipCap = override.GasTipCap
	}
	if override.GasFeeCap != nil {
		p.GasFeeCap = override.GasFeeCap
	}
	if override.MaxFee != nil {
		p.MaxFee = override.MaxFee
	}
	if override.Value != nil {
		p.Value = override.Value
	}

	return p
}

// Apply copies the explicit settings of p onto opts. Unset fields are left for bind to fill in.
func (p TxPolicy) Apply(opts *bind.TransactOpts) {
	opts.GasLimit = p.GasLimit
	opts.GasTipCap = copyInt(p.GasTipCap)
	opts.GasFeeCap = copyInt(p.GasFeeCap)
	opts.Value = copyInt(p.Value)
}

// Prices resolves the tip and fee cap a transaction sent under p would carry on client.
func (p TxPolicy) Prices(ctx context.Context, client OnchainClient) (tip, feeCap *big.Int, err error) {
	tip = copyInt(p.GasTipCap)
	if tip == nil {
		if tip, err = client.SuggestGasTipCap(ctx); err != nil {
			return nil, nil, fmt.Errorf("suggest gas tip cap: %w", err)
		}
	}

	if p.GasFeeCap != nil {
		return tip, copyInt(p.GasFeeCap), nil
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("get latest header: %w", err)
	}

	if head.BaseFee == nil {
		// pre London networks price with a single gas price
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("suggest gas price: %w", err)
		}

		return price, price, nil
	}

	feeCap = new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	return tip, feeCap, nil
}

// FeeEstimate is the price of a transaction before submission.
type FeeEstimate struct {
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Value     *big.Int
	// Fee is the most the transaction can cost in wei: GasLimit * GasFeeCap + Value.
	Fee *big.Int
}

// Estimate prices msg under p. The gas limit is estimated unless p sets one. The value of msg is
// replaced by the value of p.
func (p TxPolicy) Estimate(ctx context.Context, client OnchainClient, msg ethereum.CallMsg) (*FeeEstimate, error) {
	tip, feeCap, err := p.Prices(ctx, client)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if p.Value != nil {
		value.Set(p.Value)
	}

	gas := p.GasLimit
	if gas == 0 {
		// estimated without prices so that the balance of the sender is not checked here
		msg.Value = value
		msg.GasPrice, msg.GasFeeCap, msg.GasTipCap = nil, nil, nil
		if gas, err = client.EstimateGas(ctx, msg); err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(gas), feeCap)
	fee.Add(fee, value)

	return &FeeEstimate{
		GasLimit:  gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Value:     value,
		Fee:       fee,
	}, nil
}

// CheckFee returns ErrFeeLimitExceeded when e is above the MaxFee of p.
func (p TxPolicy) CheckFee(e *FeeEstimate) error {
	if p.MaxFee != nil && e.Fee.Cmp(p.MaxFee) > 0 {
		return fmt.Errorf("%w: estimated fee %s wei is above the limit of %s wei", ErrFeeLimitExceeded, e.Fee, p.MaxFee)
	}

	return nil
}

// ApplyEstimate sets the gas and price fields of opts to those of e.
func (e *FeeEstimate) ApplyEstimate(opts *bind.TransactOpts) {
	opts.GasLimit = e.GasLimit
	opts.GasTipCap = copyInt(e.GasTipCap)
	opts.GasFeeCap = copyInt(e.GasFeeCap)
	opts.Value = copyInt(e.Value)
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}

	return new(big.Int).Set(v)
}
