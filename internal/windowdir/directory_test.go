package windowdir

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/1broseidon/shellbridge/internal/shellstate"
)

func sampleSnapshots(n int) []Snapshot {
	list := make([]Snapshot, n)
	for i := range list {
		list[i] = Snapshot{
			PID:        int32(100 + i),
			WindowID:   int32(7 + i),
			Name:       "term",
			Geometry:   shellstate.Rect{X: int32(i), Y: -int32(i), Width: 800, Height: 600},
			Minimized:  i%2 == 1,
			Fullscreen: i%3 == 2,
			Active:     i == 0,
		}
	}
	return list
}

func TestRecordSizeMatchesLayout(t *testing.T) {
	if RecordSize != 284 {
		t.Fatalf("RecordSize = %d, want 284", RecordSize)
	}
	if got := len(Snapshot{}.AppendRecord(nil)); got != RecordSize {
		t.Fatalf("encoded record is %d bytes", got)
	}
}

func TestRecordLayout_ByteExact(t *testing.T) {
	rec := Snapshot{
		PID:      100,
		WindowID: 7,
		Name:     "term",
		Geometry: shellstate.Rect{X: 0, Y: 0, Width: 800, Height: 600},
		Active:   true,
	}.AppendRecord(nil)

	want := make([]byte, RecordSize)
	want[0] = 100
	want[4] = 7
	copy(want[8:], "term")
	want[264+8] = 0x20 // 800 = 0x320
	want[264+9] = 0x03
	want[264+12] = 0x58 // 600 = 0x258
	want[264+13] = 0x02
	want[282] = 1
	if !bytes.Equal(rec, want) {
		t.Fatalf("record bytes differ\n got %x\nwant %x", rec, want)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, k := range []int{1, 2, 17, DefaultCapacity} {
		list := sampleSnapshots(k)
		data := Encode(list)
		if len(data) != k*RecordSize {
			t.Fatalf("k=%d: encoded %d bytes", k, len(data))
		}
		got, err := Decode(uint32(k), data)
		if err != nil {
			t.Fatalf("k=%d: decode: %v", k, err)
		}
		if !reflect.DeepEqual(got, list) {
			t.Fatalf("k=%d: round trip mismatch", k)
		}
	}
}

func TestDecode_RejectsBadLengths(t *testing.T) {
	data := Encode(sampleSnapshots(2))
	cases := []struct {
		name  string
		count uint32
		data  []byte
	}{
		{"empty", 0, nil},
		{"short by one", 2, data[:len(data)-1]},
		{"long by one", 2, append(append([]byte(nil), data...), 0)},
		{"count mismatch", 3, data},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.count, tc.data); !errors.Is(err, ErrRecordLength) {
				t.Fatalf("expected ErrRecordLength, got %v", err)
			}
		})
	}
}

func TestSnapshot_LongNameTruncatedAndTerminated(t *testing.T) {
	long := strings.Repeat("x", 400)
	rec := Snapshot{Name: long}.AppendRecord(nil)
	if rec[offName+NameLength-1] != 0 {
		t.Fatalf("name field is not NUL terminated")
	}
	got, err := ParseRecord(rec)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Name) != NameLength-1 {
		t.Fatalf("expected %d byte name, got %d", NameLength-1, len(got.Name))
	}
}

func TestSnapshot_LongNameCutOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		// 127 two-byte runes end at byte 254, the 128th would cross 255.
		{"two byte", strings.Repeat("é", 200), 254},
		// 85 three-byte runes fill 255 exactly.
		{"three byte", strings.Repeat("窓", 100), 255},
		// One ASCII byte shifts the four-byte runes: 1 + 63*4 = 253.
		{"four byte", "x" + strings.Repeat("🪟", 80), 253},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(Snapshot{Name: tt.in}.AppendRecord(nil))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !utf8.ValidString(got.Name) {
				t.Fatalf("cut name is not valid UTF-8: %q", got.Name)
			}
			if len(got.Name) != tt.want || !strings.HasPrefix(tt.in, got.Name) {
				t.Fatalf("expected a %d byte prefix, got %d bytes", tt.want, len(got.Name))
			}
		})
	}
}

func TestDirectorySet_TruncatePolicy(t *testing.T) {
	d := NewDirectory(3, OverflowTruncate)
	dropped, err := d.Set(sampleSnapshots(5))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	count, data := d.Payload()
	if count != 3 || len(data) != 3*RecordSize {
		t.Fatalf("payload count=%d len=%d", count, len(data))
	}
	if d.Snapshots()[2].WindowID != 9 {
		t.Fatalf("expected the first three windows to be kept")
	}
}

func TestDirectorySet_RejectPolicyKeepsPrevious(t *testing.T) {
	d := NewDirectory(2, OverflowReject)
	if _, err := d.Set(sampleSnapshots(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := d.Set(sampleSnapshots(3)); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if got := d.Snapshots(); len(got) != 1 {
		t.Fatalf("expected previous single window to remain, got %d", len(got))
	}
}

func TestDirectorySet_DoesNotAliasCaller(t *testing.T) {
	d := NewDirectory(0, "")
	list := sampleSnapshots(2)
	if _, err := d.Set(list); err != nil {
		t.Fatalf("set: %v", err)
	}
	list[0].Name = "changed"
	if d.Snapshots()[0].Name != "term" {
		t.Fatalf("directory shares storage with caller slice")
	}
	if d.Capacity() != DefaultCapacity || d.Policy() != OverflowTruncate {
		t.Fatalf("unexpected defaults: %d %q", d.Capacity(), d.Policy())
	}
}

func TestCacheApply_AllOrNothing(t *testing.T) {
	var c Cache
	good := Encode(sampleSnapshots(2))
	if err := c.Apply(2, good); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := c.Apply(1, good[:RecordSize+10]); err == nil {
		t.Fatalf("expected malformed payload to be rejected")
	}
	if c.Len() != 2 {
		t.Fatalf("cache changed after rejected payload: %d entries", c.Len())
	}
	if c.Snapshots()[1].WindowID != 8 {
		t.Fatalf("cache contents changed")
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"": OverflowTruncate, "Reject": OverflowReject, "truncate": OverflowTruncate} {
		got, err := ParseOverflowPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseOverflowPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOverflowPolicy("drop"); err == nil {
		t.Fatalf("expected error")
	}
}
