package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockContractCaller is a testify mock of ContractCaller.
type mockContractCaller struct {
	mock.Mock
}

func (m *mockContractCaller) CallContract(
	ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int,
) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)

	var out []byte
	if v := args.Get(0); v != nil {
		out = v.([]byte) //nolint:forcetypeassert // set by the test
	}

	return out, args.Error(1)
}

// errorStringData returns the revert data of Error(reason).
func errorStringData(t *testing.T, reason string) string {
	t.Helper()

	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)

	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func Test_getErrorReasonFromTx(t *testing.T) {
	t.Parallel()

	var (
		tx = types.NewTransaction(
			1,                               // nonce
			common.HexToAddress("0xabc123"), // to address
			big.NewInt(1000000000000000000), // value: 1 ETH
			21000,                           // gas limit
			big.NewInt(20000000000),         // gas price: 20 Gwei
			[]byte{0xde, 0xad, 0xbe, 0xef},  // data
		)
	)

	tests := []struct {
		name       string
		beforeFunc func(t *testing.T, caller *mockContractCaller)
		wantReason string
		wantErr    string
	}{
		{
			name: "no transaction error",
			beforeFunc: func(t *testing.T, caller *mockContractCaller) {
				t.Helper()
				caller.On("CallContract",
					mock.Anything,
					mock.AnythingOfType("ethereum.CallMsg"),
					mock.AnythingOfType("*big.Int"),
				).Return([]byte{}, nil)
			},
			wantErr: "reverted with no reason",
		},
		{
			name: "transaction error with raw reason",
			beforeFunc: func(t *testing.T, caller *mockContractCaller) {
				t.Helper()
				caller.On("CallContract",
					mock.Anything,
					mock.AnythingOfType("ethereum.CallMsg"),
					mock.AnythingOfType("*big.Int"),
				).Return(nil, &jsonError{
					Code:    100,
					Message: "test error message",
					Data:    []byte("test error data"),
				})
			},
			wantReason: "test error data",
		},
		{
			name: "transaction error with encoded reason",
			beforeFunc: func(t *testing.T, caller *mockContractCaller) {
				t.Helper()
				caller.On("CallContract",
					mock.Anything,
					mock.AnythingOfType("ethereum.CallMsg"),
					mock.AnythingOfType("*big.Int"),
				).Return(nil, &jsonError{
					Code:    3,
					Message: "execution reverted",
					Data:    errorStringData(t, "value too low"),
				})
			},
			wantReason: "value too low",
		},
		{
			name: "transaction error with no reason (non json error)",
			beforeFunc: func(t *testing.T, caller *mockContractCaller) {
				t.Helper()
				caller.On("CallContract",
					mock.Anything,
					mock.AnythingOfType("ethereum.CallMsg"),
					mock.AnythingOfType("*big.Int"),
				).Return(nil, errors.New("error message"))
			},
			wantReason: "error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caller := &mockContractCaller{}
			tt.beforeFunc(t, caller)

			got, err := getErrorReasonFromTx(
				t.Context(), caller, common.HexToAddress("0x123"), tx, &types.Receipt{BlockNumber: big.NewInt(1)},
			)

			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantReason, got)
			}

			caller.AssertExpectations(t)
		})
	}
}

func Test_getJSONErrorData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    error
		want    string
		wantErr string
	}{
		{
			name: "valid error",
			give: &jsonError{
				Code:    100,
				Message: "execution reverted",
				Data:    "0x12345678",
			},
			want: "0x12345678",
		},
		{
			name:    "nil error",
			give:    nil,
			wantErr: "cannot parse nil error",
		},
		{
			name:    "invalid error type",
			give:    errors.New("invalid"),
			wantErr: "error must be of type jsonError",
		},
		{
			name: "trie error",
			give: &jsonError{
				Code:    -32000,
				Message: "missing trie node",
				Data:    []byte{},
			},
			wantErr: "missing trie node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := getJSONErrorData(tt.give)

			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_decodeRevertReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give string
		want string
	}{
		{name: "error string", give: errorStringData(t, "boom"), want: "boom"},
		{name: "custom error", give: "0x12345678", want: "0x12345678"},
		{name: "not hex", give: "plain text", want: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, decodeRevertReason(tt.give))
		})
	}
}

func Test_joinClose(t *testing.T) {
	t.Parallel()

	errOp := errors.New("op")
	errClose := errors.New("close")

	err := joinClose(t.Context(), func(context.Context) error { return nil }, errOp)
	require.Equal(t, errOp, err)

	err = joinClose(t.Context(), func(context.Context) error { return errClose }, errOp)
	require.ErrorIs(t, err, errOp)
	require.ErrorIs(t, err, errClose)
}

// Dummy implementation of jsonError to satisfy the interface
type jsonError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (err *jsonError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("json-rpc error %d", err.Code)
	}

	return err.Message
}

func (err *jsonError) ErrorCode() int {
	return err.Code
}

func (err *jsonError) ErrorData() any {
	return err.Data
}
