// Package shm provides memfd-backed pixel buffers shared between the
// client and the compositor. The creator sends the descriptor with
// display.create_buffer; the other side maps the same pages with FromFD.
package shm

import (
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"sync"

	"golang.org/x/sys/unix"
)

// FormatABGR8888 stores pixels as R, G, B, A bytes in memory, the same
// layout as image.RGBA.Pix.
const FormatABGR8888 uint32 = 'A' | 'B'<<8 | '2'<<16 | '4'<<24

// BytesPerPixel is the pixel size of every supported format.
const BytesPerPixel = 4

// maxDimension keeps width*stride arithmetic far away from overflow.
const maxDimension = 1 << 15

// ErrClosed is returned when accessing a buffer after Close.
var ErrClosed = errors.New("shm buffer is closed")

// ErrFault is returned when the mapped pages vanished during an access.
var ErrFault = errors.New("shm buffer fault")

// Buffer is one mapped shared-memory pixel buffer. Writers bracket their
// access with BeginAccess/EndAccess; the scope serializes writers within
// this process.
type Buffer struct {
	mu     sync.Mutex
	fd     int
	data   []byte
	width  int32
	height int32
	stride int32
	format uint32
	closed bool
}

// New creates an anonymous memfd sized for width x height pixels and maps
// it read-write.
func New(width, height int32) (*Buffer, error) {
	if err := checkDimensions(width, height, width*BytesPerPixel); err != nil {
		return nil, err
	}
	stride := width * BytesPerPixel
	size := int64(stride) * int64(height)

	fd, err := unix.MemfdCreate("shellbridge-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create memfd: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to size memfd to %d bytes: %w", size, err)
	}
	b, err := mapBuffer(fd, width, height, stride, FormatABGR8888)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return b, nil
}

// FromFD maps a descriptor received from a peer. The buffer takes
// ownership of fd and closes it on every path, including errors.
func FromFD(fd int, width, height, stride int32, format uint32) (*Buffer, error) {
	if err := checkDimensions(width, height, stride); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if format != FormatABGR8888 {
		unix.Close(fd)
		return nil, fmt.Errorf("unsupported pixel format %#x", format)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to stat shm descriptor: %w", err)
	}
	need := int64(stride) * int64(height)
	if st.Size < need {
		unix.Close(fd)
		return nil, fmt.Errorf("shm descriptor holds %d bytes, need %d", st.Size, need)
	}
	b, err := mapBuffer(fd, width, height, stride, format)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return b, nil
}

func checkDimensions(width, height, stride int32) error {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	if stride < width*BytesPerPixel || stride > maxDimension*BytesPerPixel*2 {
		return fmt.Errorf("invalid stride %d for width %d", stride, width)
	}
	return nil
}

func mapBuffer(fd int, width, height, stride int32, format uint32) (*Buffer, error) {
	size := int(stride) * int(height)
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map %d byte shm buffer: %w", size, err)
	}
	return &Buffer{
		fd:     fd,
		data:   data,
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// FD returns the backing descriptor. It stays owned by the buffer.
func (b *Buffer) FD() int        { return b.fd }
func (b *Buffer) Width() int32   { return b.width }
func (b *Buffer) Height() int32  { return b.height }
func (b *Buffer) Stride() int32  { return b.stride }
func (b *Buffer) Format() uint32 { return b.format }

// Size is the mapped byte length.
func (b *Buffer) Size() int { return int(b.stride) * int(b.height) }

// BeginAccess opens an access scope and returns the mapped bytes. The
// slice is only valid until EndAccess.
func (b *Buffer) BeginAccess() ([]byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	return b.data, nil
}

// EndAccess closes the scope opened by a successful BeginAccess.
func (b *Buffer) EndAccess() {
	b.mu.Unlock()
}

// Image copies the buffer contents into a new RGBA image.
func (b *Buffer) Image() (*image.RGBA, error) {
	data, err := b.BeginAccess()
	if err != nil {
		return nil, err
	}
	defer b.EndAccess()

	img := image.NewRGBA(image.Rect(0, 0, int(b.width), int(b.height)))
	row := int(b.width) * BytesPerPixel
	err = Guard(func() {
		for y := 0; y < int(b.height); y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+row], data[y*int(b.stride):])
		}
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Guard runs fn, which touches mapped pages, and turns a memory fault into
// an error. The peer owns the descriptor and may shrink it under the
// mapping; the next access past the new end raises SIGBUS.
func Guard(fn func()) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFault, r)
		}
	}()
	fn()
	return nil
}

// Close unmaps the pages and closes the descriptor. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	if err := unix.Munmap(b.data); err != nil {
		firstErr = fmt.Errorf("failed to unmap shm buffer: %w", err)
	}
	if err := unix.Close(b.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close shm descriptor: %w", err)
	}
	b.data = nil
	return firstErr
}
