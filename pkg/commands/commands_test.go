package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-contract-harness/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	lggr := logger.Nop()
	cmds := New(lggr)

	require.NotNil(t, cmds)
	assert.Equal(t, lggr, cmds.lggr)
}

func TestCommands_Contract(t *testing.T) {
	t.Parallel()

	cmd := New(logger.Nop()).Contract()

	require.NotNil(t, cmd)
	assert.Equal(t, "contract", cmd.Use)

	subs := cmd.Commands()
	require.Len(t, subs, 2)
	assert.Equal(t, "deploy", subs[0].Use)
	assert.Equal(t, "inspect", subs[1].Use)
}

func TestCommands_Root(t *testing.T) {
	t.Parallel()

	root := New(logger.Nop()).Root()

	assert.Equal(t, "harness", root.Use)
	assert.True(t, root.SilenceUsage)

	found, args, err := root.Find([]string{"contract", "inspect", "--dir", "out"})
	require.NoError(t, err)
	assert.Equal(t, "inspect", found.Name())
	assert.Equal(t, []string{"--dir", "out"}, args)
}
