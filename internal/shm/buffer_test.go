package shm

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNew_SharedAcrossMappings(t *testing.T) {
	b, err := New(4, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if b.Size() != 4*2*BytesPerPixel || b.Stride() != 16 {
		t.Fatalf("unexpected size %d stride %d", b.Size(), b.Stride())
	}

	dup, err := unix.Dup(b.FD())
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	peer, err := FromFD(dup, b.Width(), b.Height(), b.Stride(), b.Format())
	if err != nil {
		t.Fatalf("FromFD: %v", err)
	}
	defer peer.Close()

	data, err := b.BeginAccess()
	if err != nil {
		t.Fatalf("BeginAccess: %v", err)
	}
	for i := range data {
		data[i] = byte(i)
	}
	b.EndAccess()

	img, err := peer.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Pix[0] != 0 || img.Pix[31] != 31 {
		t.Fatalf("peer mapping does not see writes: %v", img.Pix)
	}
}

func TestFromFD_RejectsShortDescriptor(t *testing.T) {
	b, err := New(2, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	dup, err := unix.Dup(b.FD())
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	if _, err := FromFD(dup, 64, 64, 256, FormatABGR8888); err == nil {
		t.Fatalf("expected error for descriptor smaller than buffer")
	}
}

func TestFromFD_RejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name                  string
		width, height, stride int32
		format                uint32
	}{
		{"zero width", 0, 4, 16, FormatABGR8888},
		{"negative height", 4, -1, 16, FormatABGR8888},
		{"short stride", 4, 4, 8, FormatABGR8888},
		{"unknown format", 4, 4, 16, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := unix.MemfdCreate("test", unix.MFD_CLOEXEC)
			if err != nil {
				t.Fatalf("memfd: %v", err)
			}
			if _, err := FromFD(fd, tt.width, tt.height, tt.stride, tt.format); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	b, err := New(1, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.BeginAccess(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestImage_ShrunkDescriptorFails(t *testing.T) {
	b, err := New(64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := unix.Ftruncate(b.FD(), 0); err != nil {
		t.Fatalf("ftruncate: %v", err)
	}
	if _, err := b.Image(); !errors.Is(err, ErrFault) {
		t.Fatalf("expected ErrFault after the peer shrank the memfd, got %v", err)
	}
	// The buffer stays usable for Close.
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
