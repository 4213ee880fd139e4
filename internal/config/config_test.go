package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/shellbridge/internal/windowdir"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Directory.MaxWindows != windowdir.DefaultCapacity {
		t.Fatalf("expected max_windows %d, got %d", windowdir.DefaultCapacity, cfg.Directory.MaxWindows)
	}
	if cfg.OverflowPolicy() != windowdir.OverflowTruncate {
		t.Fatalf("expected truncate overflow, got %q", cfg.OverflowPolicy())
	}
	if cfg.Policy.Mode != PolicyX11 {
		t.Fatalf("expected x11 policy, got %q", cfg.Policy.Mode)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
	if res.Config.LogLevel != "info" {
		t.Fatalf("expected default log_level, got %q", res.Config.LogLevel)
	}
	if src := res.SourceOf("log_level"); src.Kind != SourceDefault {
		t.Fatalf("expected default source, got %+v", src)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.NoticeQueueDepth != DefaultConfig().NoticeQueueDepth {
		t.Fatalf("expected default queue depth, got %d", res.Config.NoticeQueueDepth)
	}
}

func TestLoadFromPath_AllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := strings.Join([]string{
		"socket_name: shellbridge-test",
		"log_level: debug",
		"directory:",
		"  max_windows: 10",
		"  overflow: reject",
		"notice_queue_depth: 32",
		"policy:",
		"  mode: remote",
		"  socket_name: /tmp/policy.sock",
		"  refresh_interval: 500ms",
		"  gap: 4",
		"",
	}, "\n")
	writeFile(t, path, data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.SocketName != "shellbridge-test" || cfg.LogLevel != "debug" || cfg.NoticeQueueDepth != 32 {
		t.Fatalf("unexpected top-level fields %+v", cfg)
	}
	if cfg.Directory.MaxWindows != 10 || cfg.OverflowPolicy() != windowdir.OverflowReject {
		t.Fatalf("unexpected directory %+v", cfg.Directory)
	}
	if cfg.Policy.Mode != PolicyRemote || cfg.Policy.RefreshInterval != 500*time.Millisecond || cfg.Policy.Gap != 4 {
		t.Fatalf("unexpected policy %+v", cfg.Policy)
	}
	got, err := cfg.PolicySocketPath()
	if err != nil || got != "/tmp/policy.sock" {
		t.Fatalf("expected absolute policy socket kept, got %q (%v)", got, err)
	}
	src := res.SourceOf("directory.overflow")
	if src.Kind != SourceFile || src.Line != 5 {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestLoadFromPath_PartialSectionKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "policy:\n  gap: 12\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Policy.Gap != 12 {
		t.Fatalf("expected gap 12, got %d", res.Config.Policy.Gap)
	}
	if res.Config.Policy.Mode != PolicyX11 || res.Config.Policy.RefreshInterval != DefaultRefreshInterval {
		t.Fatalf("expected policy defaults kept, got %+v", res.Config.Policy)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorsHaveSourceContext(t *testing.T) {
	cases := []struct {
		name string
		data string
		path string
	}{
		{"overflow", "directory:\n  overflow: drop\n", "directory.overflow"},
		{"max windows", "directory:\n  max_windows: 0\n", "directory.max_windows"},
		{"queue depth", "notice_queue_depth: -1\n", "notice_queue_depth"},
		{"mode", "policy:\n  mode: wayland\n", "policy.mode"},
		{"gap", "policy:\n  gap: -2\n", "policy.gap"},
		{"log level", "log_level: loud\n", "log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tc.data)

			_, err := LoadFromPath(path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tc.path {
				t.Fatalf("expected path %q, got %q", tc.path, verr.Path)
			}
			if !strings.Contains(err.Error(), path+":") {
				t.Fatalf("expected file:line:col prefix, got %v", err)
			}
		})
	}
}

func TestLoadFromPath_BadDurationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "policy:\n  refresh_interval: soon\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(configD, "10-base.yaml"), "notice_queue_depth: 5\ndirectory:\n  max_windows: 3\n")
	writeFile(t, filepath.Join(configD, "20-override.yaml"), "notice_queue_depth: 6\n")
	writeFile(t, filepath.Join(configD, "README.txt"), "ignored\n")

	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include:\n  - config.d\nnotice_queue_depth: 7\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.NoticeQueueDepth != 7 {
		t.Fatalf("expected notice_queue_depth 7, got %d", res.Config.NoticeQueueDepth)
	}
	if res.Config.Directory.MaxWindows != 3 {
		t.Fatalf("expected included max_windows 3, got %d", res.Config.Directory.MaxWindows)
	}
	if len(res.Files) != 3 || !strings.HasSuffix(res.Files[2], "config.yaml") {
		t.Fatalf("unexpected load order %v", res.Files)
	}
	if src := res.SourceOf("directory.max_windows"); !strings.HasSuffix(src.File, "10-base.yaml") {
		t.Fatalf("expected max_windows source in 10-base.yaml, got %+v", src)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "include: b.yaml\n")
	writeFile(t, b, "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidate_PolicySocketMustDiffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SocketName = "same"
	cfg.Policy.Mode = PolicyRemote
	cfg.Policy.SocketName = "same"
	var verr *ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) || verr.Path != "policy.socket_name" {
		t.Fatalf("expected policy.socket_name error, got %v", err)
	}
}

func TestMarshal_RoundTripsThroughLoader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RefreshInterval = 750 * time.Millisecond
	cfg.Directory.Overflow = "reject"
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, string(data))
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load printed config: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(res.Config, cfg) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", res.Config, cfg)
	}
}

func TestLoadFromPath_HotkeysMergeOverDefaults(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "keys.yaml")
	writeFile(t, inc, "policy:\n  hotkeys:\n    right+top: Mod4-KP_9\n")
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: keys.yaml\npolicy:\n  hotkeys:\n    left: \"\"\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	keys := res.Config.Policy.Hotkeys
	if keys["left"] != "" || keys["right"] != "Mod4-Mod1-Right" || keys["right+top"] != "Mod4-KP_9" {
		t.Fatalf("unexpected hotkeys %v", keys)
	}

	writeFile(t, path, "policy:\n  hotkeys:\n    middle: Mod4-m\n")
	var verr *ValidationError
	if _, err := LoadFromPath(path); !errors.As(err, &verr) || verr.Path != "policy.hotkeys.middle" {
		t.Fatalf("expected hotkey validation error, got %v", err)
	}
	if !strings.Contains(verr.Error(), path+":3:") {
		t.Fatalf("expected source context, got %v", verr)
	}
}
