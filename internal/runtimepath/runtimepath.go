package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultSocketName is the protocol socket clients connect to.
	DefaultSocketName = "shellbridge-0"
	// DefaultPolicySocketName is the socket an out-of-process policy
	// connects to.
	DefaultPolicySocketName = "shellbridge-policy"
)

// Dir returns the runtime directory used for shellbridge sockets. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/shellbridge-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/shellbridge-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath resolves the protocol socket. An absolute name is used as is;
// an empty name selects DefaultSocketName.
func SocketPath(name string) (string, error) {
	return resolve(name, DefaultSocketName)
}

// PolicySocketPath resolves the policy bridge socket the same way.
func PolicySocketPath(name string) (string, error) {
	return resolve(name, DefaultPolicySocketName)
}

func resolve(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, name), nil
}
