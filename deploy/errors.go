package deploy

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
)

var (
	// ErrDeploymentFailed is matched by every error returned by Deploy.
	ErrDeploymentFailed = errors.New("deployment failed")
	// ErrTimeout is returned when the network does not confirm a transaction in time.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrFeeLimitExceeded is returned when the estimated fee of a deployment is above the MaxFee of
	// its policy. Nothing is submitted.
	ErrFeeLimitExceeded = evm.ErrFeeLimitExceeded
	// ErrNotDeployed is returned when no contract is known, or no code is present, at an address.
	ErrNotDeployed = errors.New("contract not deployed")
	// ErrAddressTaken is returned when a registry already holds a contract at an address.
	ErrAddressTaken = errors.New("address already registered")
)

// Stage names the step of the deployment pipeline that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageEncode   Stage = "encode"
	StageEstimate Stage = "estimate"
	StageFunds    Stage = "funds"
	StageSubmit   Stage = "submit"
	StageConfirm  Stage = "confirm"
	StageVerify   Stage = "verify"
	StageRegister Stage = "register"
)

// DeploymentError is returned by Deploy. It matches ErrDeploymentFailed as well as its cause.
type DeploymentError struct {
	Artifact string
	Stage    Stage
	// TxHash is set once the deployment transaction was submitted.
	TxHash common.Hash
	Cause  error
}

func (e *DeploymentError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("deploy %s: %s (tx %s): %v", e.Artifact, e.Stage, e.TxHash.Hex(), e.Cause)
	}

	return fmt.Sprintf("deploy %s: %s: %v", e.Artifact, e.Stage, e.Cause)
}

func (e *DeploymentError) Unwrap() []error {
	return []error{ErrDeploymentFailed, e.Cause}
}
