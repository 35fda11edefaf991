// Package testutils holds fixtures shared by the package tests.
package testutils

import (
	"embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
)

// StorageName is the artifact name of the storage fixture. The contract keeps a single uint256
// readable through retrieve() and value() and written by store(uint256).
const StorageName = "storage"

//go:embed testdata/storage.bin testdata/storage-abi.json
var storageFS embed.FS

// StorageDir writes the storage fixture in the flat layout to a temporary directory and returns
// the directory.
func StorageDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{StorageName + ".bin", StorageName + "-abi.json"} {
		b, err := storageFS.ReadFile("testdata/" + name)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o600))
	}

	return dir
}

// StorageArtifact loads the storage fixture.
func StorageArtifact(t *testing.T) *artifact.Descriptor {
	t.Helper()

	desc, err := artifact.Load(artifact.Source{Dir: StorageDir(t), Name: StorageName})
	require.NoError(t, err)

	return desc
}

// RevertingArtifact returns an artifact whose creation code always reverts. Its interface
// description is borrowed from the storage fixture.
func RevertingArtifact(t *testing.T) *artifact.Descriptor {
	t.Helper()

	desc := *StorageArtifact(t)
	desc.Name = "reverting"
	// PUSH1 0 PUSH1 0 REVERT
	desc.Bytecode = []byte{0x60, 0x00, 0x60, 0x00, 0xfd}

	return &desc
}
