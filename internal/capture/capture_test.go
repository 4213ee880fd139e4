package capture

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"testing"

	"golang.org/x/sys/unix"
	"pkt.systems/pslog"

	"github.com/1broseidon/shellbridge/internal/shm"
)

type memShared struct {
	data []byte
}

func (m *memShared) BeginAccess() ([]byte, error) { return m.data, nil }
func (m *memShared) EndAccess()                   {}
func (m *memShared) Size() int                    { return len(m.data) }

type testBuffer struct {
	handle uint64
	shared *memShared
}

func (b *testBuffer) Handle() uint64 { return b.handle }
func (b *testBuffer) Shared() Shared {
	if b.shared == nil {
		return nil
	}
	return b.shared
}

type recordingRelay struct {
	requests  []int32
	completed []Result
}

func (r *recordingRelay) CaptureRequested(windowID int32, _ Buffer) {
	r.requests = append(r.requests, windowID)
}

func (r *recordingRelay) CaptureCompleted(res Result) {
	r.completed = append(r.completed, res)
}

func newTestCoordinator() (*Coordinator, *recordingRelay) {
	relay := &recordingRelay{}
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	return NewCoordinator(relay, logger), relay
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestRequest_RelaysImmediately(t *testing.T) {
	c, relay := newTestCoordinator()
	buf := &testBuffer{handle: 1, shared: &memShared{data: make([]byte, 16)}}

	c.Request(7, buf)
	c.Request(7, buf)

	if len(relay.requests) != 2 {
		t.Fatalf("expected both requests relayed without dedup, got %d", len(relay.requests))
	}
	if len(relay.completed) != 0 {
		t.Fatalf("request must not complete anything")
	}
}

func TestComplete_CopiesMatchingImage(t *testing.T) {
	c, relay := newTestCoordinator()
	buf := &testBuffer{handle: 3, shared: &memShared{data: make([]byte, 2*2*4)}}

	res := c.Complete(9, solidImage(2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255}), buf)
	if !res.Succeed {
		t.Fatalf("expected success")
	}
	if got := buf.shared.data[:4]; !bytes.Equal(got, []byte{1, 2, 3, 255}) {
		t.Fatalf("unexpected pixels %v", got)
	}
	if len(relay.completed) != 1 || relay.completed[0].WindowID != 9 || !relay.completed[0].Succeed {
		t.Fatalf("unexpected completion %+v", relay.completed)
	}
}

func TestComplete_SubImageUsesVisibleRect(t *testing.T) {
	c, _ := newTestCoordinator()
	full := solidImage(4, 4, color.RGBA{A: 255})
	full.SetRGBA(2, 2, color.RGBA{R: 200, A: 255})
	sub := full.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	buf := &testBuffer{shared: &memShared{data: make([]byte, 2*2*4)}}

	if res := c.Complete(1, sub, buf); !res.Succeed {
		t.Fatalf("expected success")
	}
	if buf.shared.data[0] != 200 {
		t.Fatalf("sub image origin not copied first: %v", buf.shared.data[:4])
	}
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name string
		img  *image.RGBA
		buf  *testBuffer
	}{
		{"non shm buffer", solidImage(2, 2, color.RGBA{R: 9}), &testBuffer{}},
		{"nil image", nil, &testBuffer{shared: &memShared{data: make([]byte, 16)}}},
		{"empty image", image.NewRGBA(image.Rectangle{}), &testBuffer{shared: &memShared{data: make([]byte, 16)}}},
		{"size mismatch", solidImage(3, 2, color.RGBA{R: 9}), &testBuffer{shared: &memShared{data: make([]byte, 16)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, relay := newTestCoordinator()
			var before []byte
			if tt.buf.shared != nil {
				for i := range tt.buf.shared.data {
					tt.buf.shared.data[i] = 0xAA
				}
				before = append([]byte(nil), tt.buf.shared.data...)
			}

			res := c.Complete(4, tt.img, tt.buf)
			if res.Succeed {
				t.Fatalf("expected failure")
			}
			if len(relay.completed) != 1 || relay.completed[0].Succeed {
				t.Fatalf("failure must still be reported once, got %+v", relay.completed)
			}
			if tt.buf.shared != nil && !bytes.Equal(before, tt.buf.shared.data) {
				t.Fatalf("destination modified on failure")
			}
		})
	}
}

func TestCompleteFromSurface(t *testing.T) {
	c, relay := newTestCoordinator()
	src := &testBuffer{handle: 1, shared: &memShared{data: []byte{1, 2, 3, 4}}}
	dst := &testBuffer{handle: 2, shared: &memShared{data: make([]byte, 4)}}

	if res := c.CompleteFromSurface(5, dst, src); !res.Succeed {
		t.Fatalf("expected success")
	}
	if !bytes.Equal(dst.shared.data, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected destination %v", dst.shared.data)
	}

	if res := c.CompleteFromSurface(5, dst, nil); res.Succeed {
		t.Fatalf("missing attachment must fail")
	}
	if res := c.CompleteFromSurface(5, dst, &testBuffer{}); res.Succeed {
		t.Fatalf("non shm attachment must fail")
	}
	if len(relay.completed) != 3 {
		t.Fatalf("expected three completions, got %d", len(relay.completed))
	}
}

type mappedBuffer struct {
	handle uint64
	mem    *shm.Buffer
}

func (b *mappedBuffer) Handle() uint64 { return b.handle }
func (b *mappedBuffer) Shared() Shared { return b.mem }

func TestComplete_ShrunkDestinationFails(t *testing.T) {
	mem, err := shm.New(32, 32)
	if err != nil {
		t.Fatalf("shm.New: %v", err)
	}
	defer mem.Close()
	if err := unix.Ftruncate(mem.FD(), 0); err != nil {
		t.Fatalf("ftruncate: %v", err)
	}

	c, relay := newTestCoordinator()
	res := c.Complete(6, solidImage(32, 32, color.RGBA{R: 1, A: 255}), &mappedBuffer{handle: 9, mem: mem})
	if res.Succeed {
		t.Fatal("copy into a shrunk memfd must fail")
	}
	if len(relay.completed) != 1 || relay.completed[0].Succeed {
		t.Fatalf("failure must be reported once, got %+v", relay.completed)
	}

	src, err := shm.New(32, 32)
	if err != nil {
		t.Fatalf("shm.New: %v", err)
	}
	defer src.Close()
	if res := c.CompleteFromSurface(6, &mappedBuffer{handle: 9, mem: mem}, &mappedBuffer{handle: 10, mem: src}); res.Succeed {
		t.Fatal("surface copy into a shrunk memfd must fail")
	}
}
