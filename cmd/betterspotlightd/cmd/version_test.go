package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theroutercompany/betterspotlight/pkg/version"
)

func TestVersionCmd_DefaultOutput(t *testing.T) {
	// Given: a version command
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// When: executing without flags
	err := cmd.Execute()

	// Then: it should print the full version string
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(version.String())+"\n", buf.String())
}

func TestVersionCmd_ShortOutput(t *testing.T) {
	// Given: a version command with --short
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--short"})

	// When: executing with --short
	err := cmd.Execute()

	// Then: only the version number is printed
	require.NoError(t, err)
	assert.Equal(t, version.Short(), strings.TrimSpace(buf.String()))
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	// Given: a version command with --json
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json"})

	// When: executing with --json
	err := cmd.Execute()

	// Then: the output is valid JSON carrying build info fields
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestVersionCmd_AddedToRoot(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When: looking up the version subcommand
	versionCmd, _, err := root.Find([]string{"version"})

	// Then: it exists and is named "version"
	require.NoError(t, err)
	assert.Equal(t, "version", versionCmd.Name())
}
