package harness

import (
	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/binding"
	"github.com/smartcontractkit/chainlink-contract-harness/chain"
	"github.com/smartcontractkit/chainlink-contract-harness/chain/evm"
	"github.com/smartcontractkit/chainlink-contract-harness/deploy"
	"github.com/smartcontractkit/chainlink-contract-harness/funding"
)

// Errors returned by New. Each is owned by the stage that produces it and re-exported here so
// that callers can match failures with errors.Is without importing every stage.
var (
	ErrArtifactNotFound  = artifact.ErrArtifactNotFound
	ErrArtifactMalformed = artifact.ErrArtifactMalformed
	ErrProvision         = chain.ErrProvision
	ErrNoFundedIdentity  = funding.ErrNoFundedIdentity
	ErrDeploymentFailed  = deploy.ErrDeploymentFailed
	ErrInterfaceMismatch = binding.ErrInterfaceMismatch
	ErrTimeout           = deploy.ErrTimeout
	ErrNetworkClosed     = evm.ErrNetworkClosed
)
