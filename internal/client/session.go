package client

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

var (
	// ErrNoWindow is returned when a window id is not in the directory.
	ErrNoWindow = errors.New("window not found")
	// ErrCaptureFailed is returned when the server reports a failed capture.
	ErrCaptureFailed = errors.New("capture failed")
)

// Session is a connection with a bound client_management global, used by
// short-lived tools that ask one question and wait for the answer.
type Session struct {
	Conn       *Conn
	Management *ClientManagement

	mu       sync.Mutex
	updated  chan struct{}
	captures map[uint32]chan CaptureResult
}

// Open dials the server and binds client_management.
func Open(path string, opts Options) (*Session, error) {
	conn, err := Dial(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	s, err := NewSession(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSession binds client_management on an existing connection. The
// session owns the management callbacks.
func NewSession(conn *Conn) (*Session, error) {
	cm, err := conn.BindClientManagement()
	if err != nil {
		return nil, err
	}
	s := &Session{
		Conn:       conn,
		Management: cm,
		updated:    make(chan struct{}),
		captures:   make(map[uint32]chan CaptureResult),
	}
	cm.OnWindowStates(func([]windowdir.Snapshot) {
		s.mu.Lock()
		close(s.updated)
		s.updated = make(chan struct{})
		s.mu.Unlock()
	})
	cm.OnCapture(func(r CaptureResult) {
		s.mu.Lock()
		ch := s.captures[r.BufferID]
		s.mu.Unlock()
		if ch != nil {
			select {
			case ch <- r:
			default:
			}
		}
	})
	return s, nil
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Windows returns the window directory. When nothing is cached yet it asks
// the server and waits for the first list.
func (s *Session) Windows(ctx context.Context) ([]windowdir.Snapshot, error) {
	s.mu.Lock()
	updated := s.updated
	s.mu.Unlock()

	if list := s.Management.GetWindowStates(); len(list) > 0 {
		return list, nil
	}
	select {
	case <-updated:
		return s.Management.GetWindowStates(), nil
	case <-s.Conn.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("no window list received: %w", ctx.Err())
	}
}

// Window looks up one window in the directory.
func (s *Session) Window(ctx context.Context, windowID int32) (windowdir.Snapshot, error) {
	list, err := s.Windows(ctx)
	if err != nil {
		return windowdir.Snapshot{}, err
	}
	for _, w := range list {
		if w.WindowID == windowID {
			return w, nil
		}
	}
	return windowdir.Snapshot{}, fmt.Errorf("%w: %d", ErrNoWindow, windowID)
}

// Capture grabs the pixels of a window into a buffer sized from the
// directory geometry and returns a copy of them.
func (s *Session) Capture(ctx context.Context, windowID int32) (*image.RGBA, error) {
	w, err := s.Window(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if w.Geometry.Width <= 0 || w.Geometry.Height <= 0 {
		return nil, fmt.Errorf("window %d has no size", windowID)
	}
	buf, err := s.Conn.CreateBuffer(w.Geometry.Width, w.Geometry.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture buffer: %w", err)
	}
	defer buf.Destroy()

	done := make(chan CaptureResult, 1)
	s.mu.Lock()
	s.captures[buf.ID()] = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.captures, buf.ID())
		s.mu.Unlock()
	}()

	if err := s.Management.CaptureWindowImage(windowID, buf); err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		if !r.Succeed {
			return nil, fmt.Errorf("%w: window %d", ErrCaptureFailed, windowID)
		}
	case <-s.Conn.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	img, err := buf.Memory().Image()
	if err != nil {
		return nil, fmt.Errorf("failed to read capture buffer: %w", err)
	}
	return img, nil
}

// Split asks the shell to tile a window and waits until the server has
// taken the request.
func (s *Session) Split(ctx context.Context, windowID int32, splitType shellstate.SplitType) error {
	if err := s.Management.SplitWindow(fmt.Sprint(windowID), splitType); err != nil {
		return err
	}
	return s.Conn.Roundtrip(ctx)
}
