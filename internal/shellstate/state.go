// Package shellstate holds the per-window shell state shared by the
// compositor and client halves: a flag bitmask that also carries the
// split capability, and the window geometry.
//
// The server owns the canonical State for each window and mutates it only
// through masked sets. The client keeps a Mirror that is replaced wholesale
// by inbound events and never computed locally.
package shellstate

import (
	"fmt"
	"strings"
)

// Flags is the shell-surface state bitmask as carried by set_state and
// state_changed.
type Flags uint32

const (
	FlagActive Flags = 1 << iota
	FlagMinimized
	FlagMaximized
	FlagFullscreen
	FlagKeepAbove
	FlagKeepBelow
	FlagOnAllDesktops
	FlagCloseable
	FlagMinimizeable
	FlagMaximizeable
	FlagFullscreenable
	FlagMovable
	FlagResizable
	FlagAcceptFocus
	FlagModal
	FlagNoSplit
	FlagTwoSplit
	FlagFourSplit
)

// BooleanFlags covers every flag that has its own requested notice.
// The split flags are excluded; they are driven only by SendSplitable.
const BooleanFlags = FlagActive | FlagMinimized | FlagMaximized | FlagFullscreen |
	FlagKeepAbove | FlagKeepBelow | FlagOnAllDesktops | FlagCloseable |
	FlagMinimizeable | FlagMaximizeable | FlagFullscreenable | FlagMovable |
	FlagResizable | FlagAcceptFocus | FlagModal

// SplitFlags is the mask of the three mutually exclusive split flags.
const SplitFlags = FlagNoSplit | FlagTwoSplit | FlagFourSplit

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagActive, "active"},
	{FlagMinimized, "minimized"},
	{FlagMaximized, "maximized"},
	{FlagFullscreen, "fullscreen"},
	{FlagKeepAbove, "keep_above"},
	{FlagKeepBelow, "keep_below"},
	{FlagOnAllDesktops, "on_all_desktops"},
	{FlagCloseable, "closeable"},
	{FlagMinimizeable, "minimizeable"},
	{FlagMaximizeable, "maximizeable"},
	{FlagFullscreenable, "fullscreenable"},
	{FlagMovable, "movable"},
	{FlagResizable, "resizable"},
	{FlagAcceptFocus, "accept_focus"},
	{FlagModal, "modal"},
	{FlagNoSplit, "no_split"},
	{FlagTwoSplit, "two_split"},
	{FlagFourSplit, "four_split"},
}

// Apply returns (f &^ mask) | (value & mask). Bits outside mask keep their
// old value regardless of what value carries.
func (f Flags) Apply(mask, value Flags) Flags {
	return (f &^ mask) | (value & mask)
}

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return flag != 0 && f&flag == flag
}

// Each calls fn for every single-bit flag set in f, lowest bit first.
func (f Flags) Each(fn func(Flags)) {
	for _, fl := range flagNames {
		if f&fl.flag != 0 {
			fn(fl.flag)
		}
	}
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	rest := f
	for _, fl := range flagNames {
		if f&fl.flag != 0 {
			parts = append(parts, fl.name)
			rest &^= fl.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlag resolves a flag by the name used in String.
func ParseFlag(name string) (Flags, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")
	for _, fl := range flagNames {
		if fl.name == name {
			return fl.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown state flag %q", name)
}

// Change describes one accepted state transition.
type Change struct {
	Old Flags
	New Flags
}

// Toggled returns the bits that differ between Old and New.
func (c Change) Toggled() Flags {
	return c.Old ^ c.New
}

// Changed reports whether flag flipped in this transition.
func (c Change) Changed(flag Flags) bool {
	return c.Toggled()&flag != 0
}

// Split is the split capability encoded by the three split flags.
type Split int

const (
	SplitNone Split = 0
	SplitTwo  Split = 1
	SplitFour Split = 2
)

// SplitFromFlags decodes the split capability. When more than one split
// flag is set the no-split flag wins, then four, then two.
func SplitFromFlags(f Flags) Split {
	switch {
	case f&FlagNoSplit != 0:
		return SplitNone
	case f&FlagFourSplit != 0:
		return SplitFour
	case f&FlagTwoSplit != 0:
		return SplitTwo
	default:
		return SplitNone
	}
}

// SplitValue returns the masked-set value that selects s and clears the
// other two split flags. Use it with SplitFlags as the mask.
func SplitValue(s Split) (Flags, error) {
	switch s {
	case SplitNone:
		return FlagNoSplit, nil
	case SplitTwo:
		return FlagTwoSplit, nil
	case SplitFour:
		return FlagFourSplit, nil
	default:
		return 0, fmt.Errorf("invalid split count %d (want 0, 1 or 2)", int(s))
	}
}
