package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// storageABIWithTransfer adds a method the storage binary does not dispatch.
	storageABIWithTransfer = `[
		{"inputs":[],"name":"retrieve","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
	]`
	tupleWithoutComponentsABI = `[
		{"inputs":[{"internalType":"struct Game.Position","name":"pos","type":"tuple"}],"name":"move","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`
	unknownTypeABI = `[
		{"inputs":[{"name":"pos","type":"Position"}],"name":"move","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`
)

// storageBin returns the flat storage fixture binary.
func storageBin(t *testing.T) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join("testdata", "out", "debug", "storage.bin"))
	require.NoError(t, err)

	return string(b)
}

// storageABI returns the flat storage fixture interface description.
func storageABI(t *testing.T) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join("testdata", "out", "debug", "storage-abi.json"))
	require.NoError(t, err)

	return string(b)
}

// writeFlat writes a flat layout artifact into dir. Empty contents skip the file.
func writeFlat(t *testing.T, dir, name, bin, abiJSON string) {
	t.Helper()

	if bin != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".bin"), []byte(bin), 0o600))
	}
	if abiJSON != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+"-abi.json"), []byte(abiJSON), 0o600))
	}
}

func Test_Load_Flat(t *testing.T) {
	t.Parallel()

	got, err := Load(Source{Dir: filepath.Join("testdata", "out", "debug"), Name: "storage"})
	require.NoError(t, err)

	assert.Equal(t, "storage", got.Name)
	assert.Equal(t, DefaultVersion, got.Version.String())
	assert.Len(t, got.Bytecode, 209)
	assert.NotEmpty(t, got.RawABI)
	assert.Equal(t, filepath.Join("testdata", "out", "debug", "storage.bin"), got.BinPath)
	assert.Equal(t, filepath.Join("testdata", "out", "debug", "storage-abi.json"), got.ABIPath)
	assert.Equal(t, "storage 1.0.0", got.String())

	names := make([]string, 0, len(got.Methods()))
	for _, m := range got.Methods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"retrieve", "store", "value"}, names)
}

func Test_Load_Foundry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		giveName string
	}{
		{name: "bare contract name", giveName: "Storage"},
		{name: "file and contract name", giveName: "Storage.sol:Storage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(Source{
				Dir:     filepath.Join("testdata", "out"),
				Name:    tt.giveName,
				Layout:  LayoutFoundry,
				Version: "2.1.0",
			})
			require.NoError(t, err)

			assert.Equal(t, "Storage", got.Name)
			assert.Equal(t, "2.1.0", got.Version.String())
			assert.Len(t, got.Bytecode, 209)
			assert.Len(t, got.ABI.Methods, 3)
			assert.Equal(t, got.BinPath, got.ABIPath)
		})
	}
}

func Test_Load_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		giveBin    string
		giveABI    string
		giveSource func(dir string) Source
		wantIs     error
		wantErr    string
	}{
		{
			name:    "binary missing",
			giveABI: "storage-abi",
			wantIs:  ErrArtifactNotFound,
			wantErr: "storage.bin",
		},
		{
			name:    "interface description missing",
			giveBin: "storage-bin",
			wantIs:  ErrArtifactNotFound,
			wantErr: "storage-abi.json",
		},
		{
			name:    "both missing",
			wantIs:  ErrArtifactNotFound,
			wantErr: "storage.bin",
		},
		{
			name:    "missing file wins over malformed file",
			giveBin: "zz",
			wantIs:  ErrArtifactNotFound,
		},
		{
			name:    "invalid hex",
			giveBin: "0xzz",
			giveABI: "storage-abi",
			wantIs:  ErrArtifactMalformed,
			wantErr: "decode bytecode",
		},
		{
			name:    "empty binary",
			giveBin: "0x\n",
			giveABI: "storage-abi",
			wantIs:  ErrArtifactMalformed,
			wantErr: "bytecode is empty",
		},
		{
			name:    "unlinked library",
			giveBin: "6080__$1234$__",
			giveABI: "storage-abi",
			wantIs:  ErrArtifactMalformed,
			wantErr: "unlinked library",
		},
		{
			name:    "interface description is not json",
			giveBin: "storage-bin",
			giveABI: "{not json",
			wantIs:  ErrArtifactMalformed,
			wantErr: "parse interface description",
		},
		{
			name:    "tuple without components",
			giveBin: "storage-bin",
			giveABI: tupleWithoutComponentsABI,
			wantIs:  ErrArtifactMalformed,
			wantErr: "struct Game.Position without component types",
		},
		{
			name:    "unknown type",
			giveBin: "storage-bin",
			giveABI: unknownTypeABI,
			wantIs:  ErrArtifactMalformed,
		},
		{
			name:    "binary from another build",
			giveBin: "storage-bin",
			giveABI: storageABIWithTransfer,
			wantIs:  ErrArtifactMalformed,
			wantErr: "transfer(address,uint256)",
		},
		{
			name: "name required",
			giveSource: func(dir string) Source {
				return Source{Dir: dir}
			},
			wantIs: ErrArtifactNotFound,
		},
		{
			name:    "invalid version",
			giveBin: "storage-bin",
			giveABI: "storage-abi",
			giveSource: func(dir string) Source {
				return Source{Dir: dir, Name: "storage", Version: "one"}
			},
			wantIs:  ErrArtifactMalformed,
			wantErr: "invalid artifact version",
		},
		{
			name: "missing file wins over invalid version",
			giveSource: func(dir string) Source {
				return Source{Dir: dir, Name: "storage", Version: "one"}
			},
			wantIs:  ErrArtifactNotFound,
			wantErr: "storage.bin",
		},
		{
			name: "unsupported layout",
			giveSource: func(dir string) Source {
				return Source{Dir: dir, Name: "storage", Layout: "hardhat"}
			},
			wantErr: "unsupported artifact layout",
		},
		{
			name: "foundry artifact missing",
			giveSource: func(dir string) Source {
				return Source{Dir: dir, Name: "Storage", Layout: LayoutFoundry}
			},
			wantIs:  ErrArtifactNotFound,
			wantErr: filepath.Join("Storage.sol", "Storage.json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()

			bin := tt.giveBin
			if bin == "storage-bin" {
				bin = storageBin(t)
			}
			abiJSON := tt.giveABI
			if abiJSON == "storage-abi" {
				abiJSON = storageABI(t)
			}
			writeFlat(t, dir, "storage", bin, abiJSON)

			src := Source{Dir: dir, Name: "storage"}
			if tt.giveSource != nil {
				src = tt.giveSource(dir)
			}

			_, err := Load(src)
			require.Error(t, err)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func Test_Load_WithoutMethods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give string
	}{
		{
			name: "empty interface description",
			give: "[]",
		},
		{
			name: "events and constructor only",
			give: `[
				{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"}],"name":"Ping","type":"event"},
				{"inputs":[],"stateMutability":"nonpayable","type":"constructor"}
			]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFlat(t, dir, "events", storageBin(t), tt.give)

			got, err := Load(Source{Dir: dir, Name: "events"})
			require.NoError(t, err)
			assert.Empty(t, got.ABI.Methods)
			assert.Empty(t, got.Methods())
		})
	}
}

func Test_Load_SkipConsistencyCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFlat(t, dir, "proxy", storageBin(t), storageABIWithTransfer)

	got, err := Load(Source{Dir: dir, Name: "proxy", SkipConsistencyCheck: true})
	require.NoError(t, err)
	assert.Contains(t, got.ABI.Methods, "transfer")
}

func Test_Load_FoundryMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantErr string
	}{
		{name: "not json", give: "{", wantErr: "Storage.json"},
		{name: "missing abi", give: `{"bytecode":{"object":"0x6080"}}`, wantErr: "missing abi"},
		{name: "missing bytecode", give: `{"abi":[],"bytecode":{"object":""}}`, wantErr: "bytecode is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "Storage.sol"), 0o700))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "Storage.sol", "Storage.json"), []byte(tt.give), 0o600))

			_, err := Load(Source{Dir: dir, Name: "Storage", Layout: LayoutFoundry})
			require.ErrorIs(t, err, ErrArtifactMalformed)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func Test_ResolveDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		giveRoot    string
		giveProfile string
		want        string
		wantIs      error
	}{
		{
			name:     "default profile",
			giveRoot: "testdata",
			want:     filepath.Join("testdata", "out"),
		},
		{
			name:        "named profile",
			giveRoot:    "testdata",
			giveProfile: "ci",
			want:        filepath.Join("testdata", "build", "ci"),
		},
		{
			name:        "unknown profile falls back to default",
			giveRoot:    "testdata",
			giveProfile: "release",
			want:        filepath.Join("testdata", "out"),
		},
		{
			name:     "no foundry.toml",
			giveRoot: filepath.Join("testdata", "out"),
			wantIs:   ErrArtifactNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveDir(tt.giveRoot, tt.giveProfile)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_ResolveDir_DefaultOut(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "foundry.toml"), []byte("[profile.default]\nsrc = \"src\"\n"), 0o600))

	got, err := ResolveDir(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out"), got)
}
