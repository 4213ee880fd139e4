package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawDirectory struct {
	MaxWindows *int    `yaml:"max_windows"`
	Overflow   *string `yaml:"overflow"`
}

type RawPolicy struct {
	Mode            *PolicyMode       `yaml:"mode"`
	SocketName      *string           `yaml:"socket_name"`
	RefreshInterval *time.Duration    `yaml:"refresh_interval"`
	Gap             *int              `yaml:"gap"`
	Hotkeys         map[string]string `yaml:"hotkeys"`
}

// RawConfig is one file as written. Nil fields were not set and leave the
// value from earlier files or the defaults in place.
type RawConfig struct {
	Include          IncludeList   `yaml:"include"`
	SocketName       *string       `yaml:"socket_name"`
	LogLevel         *string       `yaml:"log_level"`
	Directory        *RawDirectory `yaml:"directory"`
	NoticeQueueDepth *int          `yaml:"notice_queue_depth"`
	Policy           *RawPolicy    `yaml:"policy"`
}

// merge overlays other on top of r.
func (r RawConfig) merge(other RawConfig) RawConfig {
	out := r
	if other.SocketName != nil {
		out.SocketName = other.SocketName
	}
	if other.LogLevel != nil {
		out.LogLevel = other.LogLevel
	}
	if other.NoticeQueueDepth != nil {
		out.NoticeQueueDepth = other.NoticeQueueDepth
	}
	if other.Directory != nil {
		d := RawDirectory{}
		if out.Directory != nil {
			d = *out.Directory
		}
		if other.Directory.MaxWindows != nil {
			d.MaxWindows = other.Directory.MaxWindows
		}
		if other.Directory.Overflow != nil {
			d.Overflow = other.Directory.Overflow
		}
		out.Directory = &d
	}
	if other.Policy != nil {
		p := RawPolicy{}
		if out.Policy != nil {
			p = *out.Policy
		}
		if other.Policy.Mode != nil {
			p.Mode = other.Policy.Mode
		}
		if other.Policy.SocketName != nil {
			p.SocketName = other.Policy.SocketName
		}
		if other.Policy.RefreshInterval != nil {
			p.RefreshInterval = other.Policy.RefreshInterval
		}
		if other.Policy.Gap != nil {
			p.Gap = other.Policy.Gap
		}
		if other.Policy.Hotkeys != nil {
			merged := make(map[string]string, len(p.Hotkeys)+len(other.Policy.Hotkeys))
			for k, v := range p.Hotkeys {
				merged[k] = v
			}
			for k, v := range other.Policy.Hotkeys {
				merged[k] = v
			}
			p.Hotkeys = merged
		}
		out.Policy = &p
	}
	return out
}

// BuildEffectiveConfig applies raw on top of DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()
	if raw.SocketName != nil {
		cfg.SocketName = *raw.SocketName
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.NoticeQueueDepth != nil {
		cfg.NoticeQueueDepth = *raw.NoticeQueueDepth
	}
	if d := raw.Directory; d != nil {
		if d.MaxWindows != nil {
			cfg.Directory.MaxWindows = *d.MaxWindows
		}
		if d.Overflow != nil {
			cfg.Directory.Overflow = *d.Overflow
		}
	}
	if p := raw.Policy; p != nil {
		if p.Mode != nil {
			cfg.Policy.Mode = *p.Mode
		}
		if p.SocketName != nil {
			cfg.Policy.SocketName = *p.SocketName
		}
		if p.RefreshInterval != nil {
			cfg.Policy.RefreshInterval = *p.RefreshInterval
		}
		if p.Gap != nil {
			cfg.Policy.Gap = *p.Gap
		}
		for region, keys := range p.Hotkeys {
			cfg.Policy.Hotkeys[region] = keys
		}
	}
	return cfg, nil
}
