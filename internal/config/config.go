package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/runtimepath"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"gopkg.in/yaml.v3"
)

// PolicyMode selects who answers the server's notices.
type PolicyMode string

const (
	// PolicyX11 runs the built-in engine against the X server.
	PolicyX11 PolicyMode = "x11"
	// PolicyRemote accepts one external policy process on the policy socket.
	PolicyRemote PolicyMode = "remote"
	// PolicyNone drains notices without acting on them.
	PolicyNone PolicyMode = "none"
)

const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultGap             = 0
)

// DefaultHotkeys tiles the active window into screen halves with
// Super+Alt+arrow.
func DefaultHotkeys() map[string]string {
	return map[string]string{
		"left":   "Mod4-Mod1-Left",
		"right":  "Mod4-Mod1-Right",
		"top":    "Mod4-Mod1-Up",
		"bottom": "Mod4-Mod1-Down",
	}
}

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

type DirectoryConfig struct {
	MaxWindows int    `yaml:"max_windows"`
	Overflow   string `yaml:"overflow"`
}

type PolicyConfig struct {
	Mode            PolicyMode    `yaml:"mode"`
	SocketName      string        `yaml:"socket_name,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Gap             int           `yaml:"gap"`
	// Hotkeys maps a split region to a global key sequence in x11 mode.
	// An empty sequence disables the region.
	Hotkeys map[string]string `yaml:"hotkeys"`
}

// Config is the effective daemon configuration after defaults and every
// loaded file were merged.
type Config struct {
	SocketName       string          `yaml:"socket_name,omitempty"`
	LogLevel         string          `yaml:"log_level"`
	Directory        DirectoryConfig `yaml:"directory"`
	NoticeQueueDepth int             `yaml:"notice_queue_depth"`
	Policy           PolicyConfig    `yaml:"policy"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Directory: DirectoryConfig{
			MaxWindows: windowdir.DefaultCapacity,
			Overflow:   string(windowdir.OverflowTruncate),
		},
		NoticeQueueDepth: policy.DefaultQueueDepth,
		Policy: PolicyConfig{
			Mode:            PolicyX11,
			RefreshInterval: DefaultRefreshInterval,
			Gap:             DefaultGap,
			Hotkeys:         DefaultHotkeys(),
		},
	}
}

// ValidationError names the offending key and, when it came from a file,
// where it was written.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if !isLogLevel(c.LogLevel) {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: %s", strings.Join(logLevels, ", "))}
	}
	if c.Directory.MaxWindows <= 0 {
		return &ValidationError{Path: "directory.max_windows", Err: fmt.Errorf("max_windows must be > 0")}
	}
	if _, err := windowdir.ParseOverflowPolicy(c.Directory.Overflow); err != nil {
		return &ValidationError{Path: "directory.overflow", Err: err}
	}
	if c.NoticeQueueDepth <= 0 {
		return &ValidationError{Path: "notice_queue_depth", Err: fmt.Errorf("notice_queue_depth must be > 0")}
	}
	switch c.Policy.Mode {
	case PolicyX11, PolicyRemote, PolicyNone:
	default:
		return &ValidationError{Path: "policy.mode", Err: fmt.Errorf("mode must be one of: x11, remote, none")}
	}
	if c.Policy.RefreshInterval < 0 {
		return &ValidationError{Path: "policy.refresh_interval", Err: fmt.Errorf("refresh_interval must be >= 0")}
	}
	if c.Policy.Gap < 0 {
		return &ValidationError{Path: "policy.gap", Err: fmt.Errorf("gap must be >= 0")}
	}
	for region := range c.Policy.Hotkeys {
		if _, err := shellstate.ParseSplitType(region); err != nil {
			return &ValidationError{Path: "policy.hotkeys." + region, Err: err}
		}
	}
	if c.Policy.Mode == PolicyRemote && c.Policy.SocketName != "" && c.Policy.SocketName == c.SocketName {
		return &ValidationError{Path: "policy.socket_name", Err: fmt.Errorf("policy socket must differ from socket_name")}
	}
	return nil
}

func isLogLevel(level string) bool {
	for _, l := range logLevels {
		if l == level {
			return true
		}
	}
	return false
}

// OverflowPolicy is the parsed directory.overflow value.
func (c *Config) OverflowPolicy() windowdir.OverflowPolicy {
	p, err := windowdir.ParseOverflowPolicy(c.Directory.Overflow)
	if err != nil {
		return windowdir.OverflowTruncate
	}
	return p
}

// SocketPath resolves socket_name under the runtime directory.
func (c *Config) SocketPath() (string, error) {
	return runtimepath.SocketPath(c.SocketName)
}

// PolicySocketPath resolves policy.socket_name under the runtime directory.
func (c *Config) PolicySocketPath() (string, error) {
	return runtimepath.PolicySocketPath(c.Policy.SocketName)
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
