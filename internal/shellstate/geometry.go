package shellstate

import "fmt"

// Rect is a window rectangle in compositor coordinates.
type Rect struct {
	X      int32 `json:"x" yaml:"x"`
	Y      int32 `json:"y" yaml:"y"`
	Width  int32 `json:"width" yaml:"width"`
	Height int32 `json:"height" yaml:"height"`
}

// Valid reports whether the rectangle has a positive area.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// State is the canonical server-side state of one shell surface.
type State struct {
	flags    Flags
	geometry Rect
}

// NewState returns a state with the given initial flags.
func NewState(initial Flags) *State {
	return &State{flags: initial}
}

// Flags returns the current bitmask.
func (s *State) Flags() Flags {
	return s.flags
}

// Geometry returns the last rectangle recorded, valid or not.
func (s *State) Geometry() Rect {
	return s.geometry
}

// Set applies a masked update. ok is false when the bitmask did not change,
// in which case no state_changed must be sent.
func (s *State) Set(mask, value Flags) (change Change, ok bool) {
	next := s.flags.Apply(mask, value)
	if next == s.flags {
		return Change{Old: s.flags, New: s.flags}, false
	}
	change = Change{Old: s.flags, New: next}
	s.flags = next
	return change, true
}

// SetFlag sets or clears a single flag through the masked path.
func (s *State) SetFlag(flag Flags, set bool) (Change, bool) {
	var value Flags
	if set {
		value = flag
	}
	return s.Set(flag, value)
}

// SetSplit selects exactly one split flag in a single masked update.
func (s *State) SetSplit(split Split) (Change, bool, error) {
	value, err := SplitValue(split)
	if err != nil {
		return Change{}, false, err
	}
	change, ok := s.Set(SplitFlags, value)
	return change, ok, nil
}

// SetGeometry records r and reports whether a geometry event is due.
// Nothing is due when r equals the current rectangle or is degenerate; a
// degenerate rectangle is still recorded so a later valid one is sent.
func (s *State) SetGeometry(r Rect) bool {
	if r == s.geometry {
		return false
	}
	s.geometry = r
	return r.Valid()
}
