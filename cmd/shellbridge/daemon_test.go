package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/pslog"

	"github.com/1broseidon/shellbridge/internal/config"
	"github.com/1broseidon/shellbridge/internal/platform"
)

func quietContext() context.Context {
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	return pslog.ContextWithLogger(context.Background(), logger)
}

// placeholder puts a regular file where the daemon socket goes. Listening
// on the path would replace it.
func placeholder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shellbridge.sock")
	if err := os.WriteFile(path, []byte("keep"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func assertUntouched(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "keep" {
		t.Fatalf("socket path was taken over before the failure: %q, %v", data, err)
	}
}

func TestRunDaemon_BackendFailureListensNothing(t *testing.T) {
	socketPath := placeholder(t)
	cfg := config.DefaultConfig()
	cfg.SocketName = socketPath
	cfg.Policy.Mode = config.PolicyX11

	orig := openBackend
	t.Cleanup(func() { openBackend = orig })
	opened := false
	openBackend = func() (*platform.LinuxBackend, error) {
		opened = true
		assertUntouched(t, socketPath)
		return nil, errors.New("no display")
	}

	err := runDaemon(quietContext(), cfg)
	if err == nil || err.Error() != "no display" {
		t.Fatalf("expected the backend error, got %v", err)
	}
	if !opened {
		t.Fatal("backend was never opened")
	}
	assertUntouched(t, socketPath)
}

func TestRunDaemon_PolicySocketFailureListensNothing(t *testing.T) {
	socketPath := placeholder(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.SocketName = socketPath
	cfg.Policy.Mode = config.PolicyRemote
	// A regular file in the directory position makes the policy listener fail.
	cfg.Policy.SocketName = filepath.Join(blocker, "policy.sock")

	if err := runDaemon(quietContext(), cfg); err == nil {
		t.Fatal("expected the policy listener to fail")
	}
	assertUntouched(t, socketPath)
}
