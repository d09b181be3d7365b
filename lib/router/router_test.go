package router

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckAndSetDefaultsRejectsNoEndpoints(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.CheckAndSetDefaults())
}

func TestCheckAndSetDefaultsRejectsEmptyPath(t *testing.T) {
	cfg := Config{Endpoints: []EndpointSpec{{Path: ""}}}
	require.Error(t, cfg.CheckAndSetDefaults())
}

func TestCheckAndSetDefaultsFillsShutdownSignals(t *testing.T) {
	cfg := Config{Endpoints: []EndpointSpec{{Path: "/tmp/x.sock"}}}
	require.NoError(t, cfg.CheckAndSetDefaults())
	require.NotEmpty(t, cfg.ShutdownSignals)
}

func TestServeFailsFastOnConfigInvalid(t *testing.T) {
	err := Serve(context.Background(), Config{})
	require.Error(t, err)
}

func TestServeBindsAndStopsOnContextCancel(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "unused.sock"))

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{Endpoints: []EndpointSpec{{Path: filepath.Join(t.TempDir(), "ep.sock")}}}

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
