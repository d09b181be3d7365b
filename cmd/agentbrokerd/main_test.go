package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRequiresConfigFlag(t *testing.T) {
	err := run(nil)
	require.Error(t, err)
}

func TestRunFailsOnMissingConfigFile(t *testing.T) {
	err := run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestListKeysFailsWithNoUpstreamConfigured(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	err := run([]string{"list-keys"})
	require.Error(t, err)
}
