package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonStatusCmd_NotRunning(t *testing.T) {
	// Given: a config dir with no daemon socket present
	dir := withTestConfigDir(t)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(withArgs(dir, "daemon", "status"))

	// When: running daemon status
	err := cmd.Execute()

	// Then: it reports the daemon isn't running, without dialing anything
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "daemon is not running")
}

func TestDaemonStopCmd_NotRunning(t *testing.T) {
	// Given: a config dir with no pidfile
	dir := withTestConfigDir(t)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(withArgs(dir, "daemon", "stop"))

	// When: running daemon stop
	err := cmd.Execute()

	// Then: it reports nothing to stop rather than erroring
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "daemon is not running")
}

func TestDaemonStartCmd_HasForegroundFlag(t *testing.T) {
	// Given: the daemon start command
	root := NewRootCmd()

	// When: looking up its flags
	startCmd, _, err := root.Find([]string{"daemon", "start"})
	require.NoError(t, err)

	// Then: --foreground exists, defaulting to false (the background-spawn
	// path execs the current binary as a subprocess, which isn't exercised
	// here)
	flag := startCmd.Flags().Lookup("foreground")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
