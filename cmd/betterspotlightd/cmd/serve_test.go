package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve blocks on stdio/SIGINT until the process is signalled, so these
// tests only cover command wiring rather than invoking RunE.

func TestServeCmd_AddedToRoot(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When: looking up the serve subcommand
	serveCmd, _, err := root.Find([]string{"serve"})

	// Then: it exists and has a --transport flag defaulting to stdio
	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())
	flag := serveCmd.Flags().Lookup("transport")
	require.NotNil(t, flag)
	assert.Equal(t, "stdio", flag.DefValue)
}
