package policy

import (
	"context"
	"image"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/shm"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

func (r *Remote) SetFlag(ctx context.Context, surface uint64, flag shellstate.Flags, set bool) error {
	return r.call(ctx, Command{Op: OpSetFlag, Surface: surface, Flag: flag, Set: set})
}

func (r *Remote) SetState(ctx context.Context, surface uint64, mask, value shellstate.Flags) error {
	return r.call(ctx, Command{Op: OpSetState, Surface: surface, Mask: mask, Value: value})
}

func (r *Remote) SendGeometry(ctx context.Context, surface uint64, g shellstate.Rect) error {
	return r.call(ctx, Command{Op: OpSendGeometry, Surface: surface, Geometry: g})
}

func (r *Remote) SendSplitable(ctx context.Context, surface uint64, count int) error {
	return r.call(ctx, Command{Op: OpSendSplitable, Surface: surface, Count: int32(count)})
}

func (r *Remote) SetWindowStates(ctx context.Context, list []windowdir.Snapshot) error {
	return r.call(ctx, Command{Op: OpSetWindowStates, Windows: list})
}

// SendWindowCaptionImage ships the pixels through a fresh shm buffer. A
// nil or empty image reports a failed capture.
func (r *Remote) SendWindowCaptionImage(ctx context.Context, windowID int32, buffer uint64, img *image.RGBA) error {
	cmd := Command{Op: OpSendCaptionImage, WindowID: windowID, Buffer: buffer}
	if img == nil || img.Rect.Empty() {
		return r.call(ctx, cmd)
	}

	w, h := int32(img.Rect.Dx()), int32(img.Rect.Dy())
	buf, err := shm.New(w, h)
	if err != nil {
		return err
	}
	defer buf.Close()

	data, err := buf.BeginAccess()
	if err != nil {
		return err
	}
	row := int(w) * shm.BytesPerPixel
	for y := 0; y < int(h); y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(data[y*row:(y+1)*row], img.Pix[off:off+row])
	}
	buf.EndAccess()

	cmd.ImageWidth, cmd.ImageHeight = w, h
	return r.call(ctx, cmd, buf.FD())
}

func (r *Remote) SendWindowCaption(ctx context.Context, windowID int32, buffer uint64, surface uint64) error {
	return r.call(ctx, Command{Op: OpSendCaption, WindowID: windowID, Buffer: buffer, Surface: surface})
}

func (r *Remote) SendSplitChange(ctx context.Context, id string, count int32) error {
	return r.call(ctx, Command{Op: OpSendSplitChange, ID: id, Count: count})
}
