package deploy

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrUnsupportedArgument is returned by ParseArgs for types that have no textual form.
var ErrUnsupportedArgument = errors.New("unsupported argument type")

// ParseArgs converts the textual values in raw to the Go values the ABI encoder expects for
// inputs. Integers accept decimal and 0x prefixed hex, bytes accept 0x prefixed hex. Arrays,
// slices and tuples are not supported.
func ParseArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("got %d arguments, want %d", len(raw), len(inputs))
	}

	out := make([]any, 0, len(raw))
	for i, in := range inputs {
		v, err := parseArg(in.Type, strings.TrimSpace(raw[i]))
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, in.Type.String(), in.Name, err)
		}

		out = append(out, v)
	}

	return out, nil
}

func parseArg(typ abi.Type, s string) (any, error) {
	switch typ.T {
	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		if typ.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q for unsigned type", s)
		}

		return sizedInt(typ, n)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}

		return common.HexToAddress(s), nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != typ.Size {
			return nil, fmt.Errorf("got %d bytes, want %d", len(b), typ.Size)
		}

		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))

		return arr.Interface(), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArgument, typ.String())
}

// sizedInt returns n as the Go type go-ethereum maps typ to: a fixed size integer for 8 to 64
// bits, *big.Int above.
func sizedInt(typ abi.Type, n *big.Int) (any, error) {
	goType := typ.GetType()
	if goType == reflect.TypeOf(n) {
		return n, nil
	}

	v := reflect.New(goType).Elem()
	if typ.T == abi.UintTy {
		if !n.IsUint64() || v.OverflowUint(n.Uint64()) {
			return nil, fmt.Errorf("%s overflows %s", n, typ.String())
		}
		v.SetUint(n.Uint64())
	} else {
		if !n.IsInt64() || v.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%s overflows %s", n, typ.String())
		}
		v.SetInt(n.Int64())
	}

	return v.Interface(), nil
}
