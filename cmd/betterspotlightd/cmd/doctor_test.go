package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_ReportsMissingRoot(t *testing.T) {
	// Given: a config pointing at a root that doesn't exist
	dir := withTestConfigDir(t, filepath.Join(t.TempDir(), "does-not-exist"))

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(withArgs(dir, "doctor"))

	// When: running doctor
	err := cmd.Execute()

	// Then: it flags the missing root and the overall failed check
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "config loaded and valid")
	assert.Contains(t, out, "one or more checks failed")
}

func TestDoctorCmd_AllChecksPassWithValidRoot(t *testing.T) {
	// Given: a config pointing at a real, writable root
	root := t.TempDir()
	dir := withTestConfigDir(t, root)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(withArgs(dir, "doctor"))

	// When: running doctor
	err := cmd.Execute()

	// Then: every check passes (embedding.provider is "none", so no ollama
	// reachability probe runs)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "all checks passed")
}

func TestDoctorCmd_ProfileDumpWritesSnapshots(t *testing.T) {
	// Given: a config dir and --profile-dump
	root := t.TempDir()
	dir := withTestConfigDir(t, root)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(withArgs(dir, "doctor", "--profile-dump"))

	// When: running doctor --profile-dump
	err := cmd.Execute()

	// Then: heap and goroutine snapshots land in <data_dir>/diagnostics
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "wrote heap/goroutine snapshot to")

	diagDir := filepath.Join(dir, "data", "diagnostics")
	_, err = os.Stat(filepath.Join(diagDir, "heap.pprof"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(diagDir, "goroutine.pprof"))
	assert.NoError(t, err)
}
