package server

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/1broseidon/shellbridge/internal/capture"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/split"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

// ErrUnknownSurface is returned for policy calls naming a shell surface
// that does not exist (anymore).
var ErrUnknownSurface = errors.New("unknown shell surface")

// apply runs fn on the loop and returns its error.
func (s *Server) apply(ctx context.Context, fn func() error) error {
	var err error
	if perr := s.Do(ctx, func() { err = fn() }); perr != nil {
		return perr
	}
	return err
}

func (s *Server) shellSurface(handle uint64) (*shellSurface, error) {
	ss, ok := s.shellSurfaces[handle]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownSurface, handle)
	}
	return ss, nil
}

// SetFlag sets or clears one boolean flag on a shell surface.
func (s *Server) SetFlag(ctx context.Context, surface uint64, flag shellstate.Flags, set bool) error {
	if flag == 0 || flag&^shellstate.BooleanFlags != 0 {
		return fmt.Errorf("flag %s cannot be set directly", flag)
	}
	var value shellstate.Flags
	if set {
		value = flag
	}
	return s.SetState(ctx, surface, flag, value)
}

// SetState applies a masked update and emits state_changed when the
// bitmask changed.
func (s *Server) SetState(ctx context.Context, surface uint64, mask, value shellstate.Flags) error {
	return s.apply(ctx, func() error {
		ss, err := s.shellSurface(surface)
		if err != nil {
			return err
		}
		if change, ok := ss.state.Set(mask, value); ok {
			ss.c.log.Debug("state changed", "surface", surface, "old", change.Old.String(), "new", change.New.String())
			ss.sendState(change.New)
		}
		return nil
	})
}

// SendGeometry records the window rectangle. Equal or degenerate
// rectangles produce no event.
func (s *Server) SendGeometry(ctx context.Context, surface uint64, r shellstate.Rect) error {
	return s.apply(ctx, func() error {
		ss, err := s.shellSurface(surface)
		if err != nil {
			return err
		}
		if ss.state.SetGeometry(r) {
			ss.sendGeometry(r)
		}
		return nil
	})
}

// SendSplitable selects the split capability of a surface: 0, 1 or 2.
func (s *Server) SendSplitable(ctx context.Context, surface uint64, count int) error {
	return s.apply(ctx, func() error {
		ss, err := s.shellSurface(surface)
		if err != nil {
			return err
		}
		change, ok, err := split.SendSplitable(ss.state, count)
		if err != nil {
			return err
		}
		if ok {
			ss.sendState(change.New)
		}
		return nil
	})
}

// SetWindowStates replaces the window directory and broadcasts it to
// every bound client-management resource.
func (s *Server) SetWindowStates(ctx context.Context, list []windowdir.Snapshot) error {
	return s.apply(ctx, func() error {
		dropped, err := s.dir.Set(list)
		if err != nil {
			s.log.Warn("window list rejected", "windows", len(list), "capacity", s.dir.Capacity(), "err", err)
			return err
		}
		if dropped > 0 {
			s.log.Warn("window list truncated", "windows", len(list), "dropped", dropped, "capacity", s.dir.Capacity())
		}
		count, data := s.dir.Payload()
		s.log.Debug("window states broadcast", "count", count, "resources", len(s.management))
		for _, m := range s.management {
			m.sendWindowStates(count, data)
		}
		return nil
	})
}

// SendWindowCaptionImage completes a capture with pixels rendered by the
// policy. A nil image or an unknown buffer completes it as failed.
func (s *Server) SendWindowCaptionImage(ctx context.Context, windowID int32, buf uint64, img *image.RGBA) error {
	return s.apply(ctx, func() error {
		s.captures.Complete(windowID, img, s.captureTarget(buf))
		return nil
	})
}

// SendWindowCaption completes a capture from the buffer attached to the
// surface behind a shell surface.
func (s *Server) SendWindowCaption(ctx context.Context, windowID int32, buf uint64, surface uint64) error {
	return s.apply(ctx, func() error {
		var source capture.Buffer
		if ss, ok := s.shellSurfaces[surface]; ok && ss.surface.attached != nil {
			source = ss.surface.attached
		}
		s.captures.CompleteFromSurface(windowID, s.captureTarget(buf), source)
		return nil
	})
}

// captureTarget resolves a buffer handle; zero names no buffer.
func (s *Server) captureTarget(handle uint64) capture.Buffer {
	if handle == 0 {
		return nil
	}
	b, ok := s.buffers[handle]
	if !ok {
		s.log.Warn("capture buffer is gone", "buffer", handle)
		return nil
	}
	return b
}

// SendSplitChange stores and broadcasts a split change; counts of zero or
// less are ignored.
func (s *Server) SendSplitChange(ctx context.Context, id string, count int32) error {
	return s.apply(ctx, func() error {
		s.splits.SendSplitChange(id, count)
		return nil
	})
}

// CaptureRequested implements capture.Relay.
func (s *Server) CaptureRequested(windowID int32, buf capture.Buffer) {
	s.publish(policy.Notice{Kind: policy.KindCaptureRequest, WindowID: windowID, Buffer: buf.Handle()})
}

// CaptureCompleted implements capture.Relay. Every client-management
// resource is told; the buffer object is only named to the client that
// owns it.
func (s *Server) CaptureCompleted(r capture.Result) {
	b, _ := r.Buffer.(*buffer)
	for _, m := range s.management {
		var object uint32
		if b != nil && b.c == m.c {
			object = b.id
		}
		m.sendCaptureCallback(r.WindowID, r.Succeed, object)
	}
}

// SplitWindowRequested implements split.Relay.
func (s *Server) SplitWindowRequested(id string, splitType shellstate.SplitType) {
	s.publish(policy.Notice{Kind: policy.KindSplitWindowRequest, ID: id, SplitType: splitType})
}

// SurfaceSplitRequested implements split.Relay.
func (s *Server) SurfaceSplitRequested(surface uint64, splitType shellstate.SplitType, mode shellstate.SplitMode) {
	n := policy.Notice{Kind: policy.KindSurfaceSplitRequested, Surface: surface, SplitType: splitType, SplitMode: mode}
	if ss, ok := s.shellSurfaces[surface]; ok {
		n.WindowID = ss.surface.windowID
	}
	s.publish(n)
}

// SplitChanged implements split.Relay.
func (s *Server) SplitChanged(slot split.Slot) {
	for _, m := range s.management {
		m.sendSplitChange(slot.ID, slot.Count)
	}
}
