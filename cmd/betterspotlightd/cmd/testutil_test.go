package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// withTestConfigDir creates a throwaway directory containing a minimal
// .betterspotlight.yaml (embedding disabled, data dir under the same
// tempdir) and isolates XDG_CONFIG_HOME so tests never touch a real
// ~/.config/betterspotlight or ~/.betterspotlight.
//
// NewRootCmd resets the package-level configDir variable to its "." default
// every time it's called (pflag.StringVar assigns the default immediately),
// so tests must thread the directory back in via the real --config-dir flag
// rather than writing to configDir directly; use withArgs to build the args
// slice for cmd.SetArgs.
func withTestConfigDir(t *testing.T, roots ...string) string {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	rootsYAML := "[]"
	if len(roots) > 0 {
		quoted := make([]string, len(roots))
		for i, r := range roots {
			quoted[i] = fmt.Sprintf("%q", r)
		}
		rootsYAML = "[" + strings.Join(quoted, ", ") + "]"
	}

	yaml := fmt.Sprintf(`version: 1
paths:
  roots: %s
  data_dir: %q
embedding:
  provider: none
server:
  transport: stdio
`, rootsYAML, dataDir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".betterspotlight.yaml"), []byte(yaml), 0o644))

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-config"))

	return dir
}

// withArgs prepends --config-dir dir to args, for commands that need to load
// configuration from a test-owned directory.
func withArgs(dir string, args ...string) []string {
	return append([]string{"--config-dir", dir}, args...)
}
