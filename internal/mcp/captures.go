package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func captureBaseDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "shellbridge", "captures"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = strings.TrimSpace(os.Getenv("HOME"))
	}
	if home == "" {
		return "", fmt.Errorf("failed to resolve capture directory: home directory is not set")
	}
	return filepath.Join(home, ".local", "share", "shellbridge", "captures"), nil
}

// SaveCapture writes a PNG to dir, or to the default capture directory
// when dir is empty, and returns the file path.
func SaveCapture(dir string, windowID int32, data []byte) (string, error) {
	if dir == "" {
		base, err := captureBaseDir()
		if err != nil {
			return "", err
		}
		dir = base
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}
	name := fmt.Sprintf("window-%d-%s.png", windowID, time.Now().UTC().Format("20060102T150405.000000000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}
