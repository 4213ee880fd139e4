package shellstate

import "sync"

// Mirror is the client-side read-only copy of a shell surface state. It is
// only written by inbound events.
type Mirror struct {
	mu       sync.RWMutex
	flags    Flags
	geometry Rect
}

// NewMirror returns a mirror with the defaults a fresh client assumes
// before the first state_changed arrives.
func NewMirror() *Mirror {
	return &Mirror{flags: FlagAcceptFocus}
}

// ApplyStateChanged replaces the bitmask with the full value carried by the
// event. ok is false when nothing changed.
func (m *Mirror) ApplyStateChanged(state Flags) (Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	change := Change{Old: m.flags, New: state}
	if state == m.flags {
		return change, false
	}
	m.flags = state
	return change, true
}

// ApplyGeometry records an inbound geometry event and reports whether it
// differs from the previous one.
func (m *Mirror) ApplyGeometry(r Rect) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r == m.geometry {
		return false
	}
	m.geometry = r
	return true
}

func (m *Mirror) Flags() Flags {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags
}

func (m *Mirror) Geometry() Rect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.geometry
}

// Is reports whether flag is currently set.
func (m *Mirror) Is(flag Flags) bool {
	return m.Flags().Has(flag)
}

func (m *Mirror) Active() bool        { return m.Is(FlagActive) }
func (m *Mirror) Minimized() bool     { return m.Is(FlagMinimized) }
func (m *Mirror) Maximized() bool     { return m.Is(FlagMaximized) }
func (m *Mirror) Fullscreen() bool    { return m.Is(FlagFullscreen) }
func (m *Mirror) KeepAbove() bool     { return m.Is(FlagKeepAbove) }
func (m *Mirror) KeepBelow() bool     { return m.Is(FlagKeepBelow) }
func (m *Mirror) OnAllDesktops() bool { return m.Is(FlagOnAllDesktops) }
func (m *Mirror) Closeable() bool     { return m.Is(FlagCloseable) }
func (m *Mirror) Minimizeable() bool  { return m.Is(FlagMinimizeable) }
func (m *Mirror) Maximizeable() bool  { return m.Is(FlagMaximizeable) }
func (m *Mirror) Fullscreenable() bool {
	return m.Is(FlagFullscreenable)
}
func (m *Mirror) Movable() bool     { return m.Is(FlagMovable) }
func (m *Mirror) Resizable() bool   { return m.Is(FlagResizable) }
func (m *Mirror) AcceptFocus() bool { return m.Is(FlagAcceptFocus) }
func (m *Mirror) Modal() bool       { return m.Is(FlagModal) }

// Splitable returns 0, 1 or 2 for none, two-way and four-way splitting.
func (m *Mirror) Splitable() int {
	return int(SplitFromFlags(m.Flags()))
}

func (m *Mirror) IsSplitable() bool {
	return m.Splitable() != 0
}
