// Package capture bridges window capture requests from clients to the
// renderer and relays the outcome back.
//
// The coordinator holds no queue: every request is handed upward at once
// and every completion is reported to all bound client-management
// resources, whichever one asked.
package capture

import (
	"context"
	"image"

	"pkt.systems/pslog"

	"github.com/1broseidon/shellbridge/internal/shm"
)

// Shared is the mapped memory behind a capture destination.
// *shm.Buffer implements it.
type Shared interface {
	BeginAccess() ([]byte, error)
	EndAccess()
	Size() int
}

// Buffer is a capture destination known to the server.
type Buffer interface {
	// Handle identifies the buffer across the process boundary.
	Handle() uint64
	// Shared returns the shared memory behind the buffer, or nil when the
	// buffer is not shared-memory backed.
	Shared() Shared
}

// Result is one capture completion.
type Result struct {
	WindowID int32
	Succeed  bool
	Buffer   Buffer
}

// Relay receives requests for the renderer and completions for clients.
type Relay interface {
	CaptureRequested(windowID int32, buf Buffer)
	CaptureCompleted(r Result)
}

// Coordinator is owned by the server event loop.
type Coordinator struct {
	relay Relay
	log   pslog.Logger
}

func NewCoordinator(relay Relay, logger pslog.Logger) *Coordinator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Coordinator{relay: relay, log: logger}
}

// Request hands a capture request upward and returns immediately.
func (c *Coordinator) Request(windowID int32, buf Buffer) {
	c.log.Debug("capture requested", "window_id", windowID, "buffer", buf.Handle())
	c.relay.CaptureRequested(windowID, buf)
}

// Complete copies img into buf and reports the outcome. The copy happens
// only when buf is shared-memory backed, img holds pixels and its byte
// length equals the destination size.
func (c *Coordinator) Complete(windowID int32, img *image.RGBA, buf Buffer) Result {
	ok := c.copyImage(windowID, img, buf)
	return c.finish(windowID, ok, buf)
}

// CompleteFromSurface copies the pixels of the buffer attached to a
// surface. A nil source fails the capture.
func (c *Coordinator) CompleteFromSurface(windowID int32, buf Buffer, source Buffer) Result {
	ok := c.copyBuffer(windowID, source, buf)
	return c.finish(windowID, ok, buf)
}

func (c *Coordinator) finish(windowID int32, ok bool, buf Buffer) Result {
	r := Result{WindowID: windowID, Succeed: ok, Buffer: buf}
	c.log.Debug("capture completed", "window_id", windowID, "succeed", ok)
	c.relay.CaptureCompleted(r)
	return r
}

func (c *Coordinator) copyImage(windowID int32, img *image.RGBA, buf Buffer) bool {
	dst := sharedOf(buf)
	if dst == nil {
		c.log.Warn("capture destination is not shared memory", "window_id", windowID)
		return false
	}
	if img == nil || img.Rect.Empty() {
		c.log.Warn("capture image is empty", "window_id", windowID)
		return false
	}
	row := img.Rect.Dx() * 4
	height := img.Rect.Dy()
	if row*height != dst.Size() {
		c.log.Warn("capture size mismatch", "window_id", windowID, "image_bytes", row*height, "buffer_bytes", dst.Size())
		return false
	}

	data, err := dst.BeginAccess()
	if err != nil {
		c.log.Warn("capture destination unavailable", "window_id", windowID, "err", err)
		return false
	}
	defer dst.EndAccess()
	err = shm.Guard(func() {
		for y := 0; y < height; y++ {
			off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
			copy(data[y*row:(y+1)*row], img.Pix[off:off+row])
		}
	})
	if err != nil {
		c.log.Warn("capture copy failed", "window_id", windowID, "err", err)
		return false
	}
	return true
}

func (c *Coordinator) copyBuffer(windowID int32, source, buf Buffer) bool {
	dst := sharedOf(buf)
	if dst == nil {
		c.log.Warn("capture destination is not shared memory", "window_id", windowID)
		return false
	}
	src := sharedOf(source)
	if src == nil {
		c.log.Warn("surface has no shared memory attachment", "window_id", windowID)
		return false
	}
	if src == dst {
		return true
	}
	if src.Size() == 0 || src.Size() != dst.Size() {
		c.log.Warn("capture size mismatch", "window_id", windowID, "image_bytes", src.Size(), "buffer_bytes", dst.Size())
		return false
	}

	from, err := src.BeginAccess()
	if err != nil {
		c.log.Warn("surface attachment unavailable", "window_id", windowID, "err", err)
		return false
	}
	defer src.EndAccess()
	to, err := dst.BeginAccess()
	if err != nil {
		c.log.Warn("capture destination unavailable", "window_id", windowID, "err", err)
		return false
	}
	defer dst.EndAccess()
	if err := shm.Guard(func() { copy(to, from) }); err != nil {
		c.log.Warn("capture copy failed", "window_id", windowID, "err", err)
		return false
	}
	return true
}

func sharedOf(b Buffer) Shared {
	if b == nil {
		return nil
	}
	return b.Shared()
}
