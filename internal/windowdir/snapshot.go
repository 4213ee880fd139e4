// Package windowdir implements the window directory: a bounded list of
// fixed-layout window snapshots that the server broadcasts wholesale and
// clients cache.
package windowdir

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/1broseidon/shellbridge/internal/shellstate"
)

const (
	// NameLength is the size of the fixed name field including its NUL.
	NameLength = 256

	// RecordSize is the encoded size of one Snapshot: pid, window id,
	// name, four geometry ints, three bools and one pad byte.
	RecordSize = 4 + 4 + NameLength + 16 + 3 + 1

	offPID        = 0
	offWindowID   = 4
	offName       = 8
	offGeometry   = offName + NameLength
	offMinimized  = offGeometry + 16
	offFullscreen = offMinimized + 1
	offActive     = offFullscreen + 1
)

// ErrRecordLength is returned when a window_states buffer is not an exact
// multiple of RecordSize matching its count.
var ErrRecordLength = errors.New("window states buffer has invalid length")

// Snapshot describes one window at a point in time.
type Snapshot struct {
	PID        int32           `json:"pid"`
	WindowID   int32           `json:"window_id"`
	Name       string          `json:"name"`
	Geometry   shellstate.Rect `json:"geometry"`
	Minimized  bool            `json:"minimized"`
	Fullscreen bool            `json:"fullscreen"`
	Active     bool            `json:"active"`
}

// StateNames lists the set state flags, active first.
func (s Snapshot) StateNames() []string {
	var out []string
	if s.Active {
		out = append(out, "active")
	}
	if s.Minimized {
		out = append(out, "minimized")
	}
	if s.Fullscreen {
		out = append(out, "fullscreen")
	}
	return out
}

// AppendRecord appends the fixed-layout encoding of s to dst. Names that
// do not fit are cut on a rune boundary so the field stays valid UTF-8
// and NUL terminated.
func (s Snapshot) AppendRecord(dst []byte) []byte {
	var rec [RecordSize]byte
	binary.LittleEndian.PutUint32(rec[offPID:], uint32(s.PID))
	binary.LittleEndian.PutUint32(rec[offWindowID:], uint32(s.WindowID))
	copy(rec[offName:offName+NameLength], fitName(s.Name))

	binary.LittleEndian.PutUint32(rec[offGeometry:], uint32(s.Geometry.X))
	binary.LittleEndian.PutUint32(rec[offGeometry+4:], uint32(s.Geometry.Y))
	binary.LittleEndian.PutUint32(rec[offGeometry+8:], uint32(s.Geometry.Width))
	binary.LittleEndian.PutUint32(rec[offGeometry+12:], uint32(s.Geometry.Height))
	rec[offMinimized] = boolByte(s.Minimized)
	rec[offFullscreen] = boolByte(s.Fullscreen)
	rec[offActive] = boolByte(s.Active)
	return append(dst, rec[:]...)
}

// fitName cuts name to at most NameLength-1 bytes without splitting a
// multi-byte sequence.
func fitName(name string) string {
	n := NameLength - 1
	if len(name) <= n {
		return name
	}
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// ParseRecord decodes exactly one record.
func ParseRecord(rec []byte) (Snapshot, error) {
	if len(rec) != RecordSize {
		return Snapshot{}, fmt.Errorf("%w: record is %d bytes, want %d", ErrRecordLength, len(rec), RecordSize)
	}
	name := rec[offName : offName+NameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Snapshot{
		PID:      int32(binary.LittleEndian.Uint32(rec[offPID:])),
		WindowID: int32(binary.LittleEndian.Uint32(rec[offWindowID:])),
		Name:     string(name),
		Geometry: shellstate.Rect{
			X:      int32(binary.LittleEndian.Uint32(rec[offGeometry:])),
			Y:      int32(binary.LittleEndian.Uint32(rec[offGeometry+4:])),
			Width:  int32(binary.LittleEndian.Uint32(rec[offGeometry+8:])),
			Height: int32(binary.LittleEndian.Uint32(rec[offGeometry+12:])),
		},
		Minimized:  rec[offMinimized] != 0,
		Fullscreen: rec[offFullscreen] != 0,
		Active:     rec[offActive] != 0,
	}, nil
}

// Encode packs snapshots back to back.
func Encode(list []Snapshot) []byte {
	buf := make([]byte, 0, len(list)*RecordSize)
	for _, s := range list {
		buf = s.AppendRecord(buf)
	}
	return buf
}

// Decode validates and unpacks a window_states payload. The buffer must be
// non-empty, a whole number of records, and agree with count.
func Decode(count uint32, data []byte) ([]Snapshot, error) {
	if len(data) == 0 || len(data)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a positive multiple of %d", ErrRecordLength, len(data), RecordSize)
	}
	if uint64(count)*RecordSize != uint64(len(data)) {
		return nil, fmt.Errorf("%w: count %d needs %d bytes, got %d", ErrRecordLength, count, uint64(count)*RecordSize, len(data))
	}
	list := make([]Snapshot, 0, count)
	for off := 0; off < len(data); off += RecordSize {
		s, err := ParseRecord(data[off : off+RecordSize])
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
