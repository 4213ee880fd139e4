package shellstate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Property identifies a set_property payload.
type Property uint32

const (
	PropertyNoTitleBar   Property = 1 << 0
	PropertyWindowRadius Property = 1 << 1
	PropertyQuickTile    Property = 1 << 2
)

var (
	// ErrUnknownProperty is returned for property ids outside the known set.
	ErrUnknownProperty = errors.New("unknown shell surface property")
	// ErrPropertyLength is returned when a payload has the wrong size for
	// its property id.
	ErrPropertyLength = errors.New("property payload has wrong length")
)

func (p Property) String() string {
	switch p {
	case PropertyNoTitleBar:
		return "no_titlebar"
	case PropertyWindowRadius:
		return "window_radius"
	case PropertyQuickTile:
		return "quick_tile"
	default:
		return fmt.Sprintf("property(%d)", uint32(p))
	}
}

// payloadLength is the exact byte size each property payload must have.
func (p Property) payloadLength() (int, bool) {
	switch p {
	case PropertyNoTitleBar:
		return 4, true
	case PropertyWindowRadius, PropertyQuickTile:
		return 8, true
	default:
		return 0, false
	}
}

// SplitType selects the screen region of a quick-tile request. Vertical
// and horizontal halves combine into quarters.
type SplitType int32

const (
	SplitLeft   SplitType = 1 << 0
	SplitRight  SplitType = 1 << 1
	SplitTop    SplitType = 1 << 2
	SplitBottom SplitType = 1 << 3
)

var splitTypeNames = []struct {
	t    SplitType
	name string
}{
	{SplitLeft, "left"},
	{SplitRight, "right"},
	{SplitTop, "top"},
	{SplitBottom, "bottom"},
}

func (t SplitType) String() string {
	var parts []string
	for _, n := range splitTypeNames {
		if t&n.t != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ParseSplitType accepts region names joined by "+", "|" or ",", for
// example "left" or "right+top".
func ParseSplitType(s string) (SplitType, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '+' || r == '|' || r == ',' || r == ' '
	})
	var out SplitType
	for _, f := range fields {
		found := false
		for _, n := range splitTypeNames {
			if n.name == f {
				out |= n.t
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown split region %q", f)
		}
	}
	if out == 0 {
		return 0, fmt.Errorf("split type is empty")
	}
	if out&SplitLeft != 0 && out&SplitRight != 0 || out&SplitTop != 0 && out&SplitBottom != 0 {
		return 0, fmt.Errorf("split type %q names opposite regions", s)
	}
	return out, nil
}

// SplitMode is how many regions the screen is tiled into.
type SplitMode int32

const (
	SplitModeTwo   SplitMode = 1 << 0
	SplitModeThree SplitMode = 1 << 1
	SplitModeFour  SplitMode = 1 << 2
)

// PropertyValue is a decoded set_property payload. Only the fields for
// Property are meaningful.
type PropertyValue struct {
	Property   Property
	NoTitleBar int32
	RadiusX    float32
	RadiusY    float32
	SplitType  SplitType
	SplitMode  SplitMode
}

// EncodeNoTitleBar packs a no-titlebar payload (one i32).
func EncodeNoTitleBar(value int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return buf
}

// EncodeWindowRadius packs a window-radius payload (two f32).
func EncodeWindowRadius(x, y float32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(y))
	return buf
}

// EncodeQuickTile packs a quick-tile payload (split type, mode).
func EncodeQuickTile(splitType SplitType, mode SplitMode) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(splitType))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(mode))
	return buf
}

// DecodeProperty validates the payload size for p before interpreting any
// bytes.
func DecodeProperty(p Property, data []byte) (PropertyValue, error) {
	want, ok := p.payloadLength()
	if !ok {
		return PropertyValue{}, fmt.Errorf("%w: %d", ErrUnknownProperty, uint32(p))
	}
	if len(data) != want {
		return PropertyValue{}, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrPropertyLength, p, want, len(data))
	}

	v := PropertyValue{Property: p}
	switch p {
	case PropertyNoTitleBar:
		v.NoTitleBar = int32(binary.LittleEndian.Uint32(data))
	case PropertyWindowRadius:
		v.RadiusX = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
		v.RadiusY = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	case PropertyQuickTile:
		v.SplitType = SplitType(int32(binary.LittleEndian.Uint32(data[0:4])))
		v.SplitMode = SplitMode(int32(binary.LittleEndian.Uint32(data[4:8])))
	}
	return v, nil
}
