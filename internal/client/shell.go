package client

import (
	"sync"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/wire"
)

// Shell is a bound "shell" global.
type Shell struct {
	c  *Conn
	id uint32
}

func (s *Shell) ID() uint32 { return s.id }

// GetShellSurface creates the shell surface for surface. The server
// rejects a second shell surface for the same surface with
// shell_surface_exists.
func (s *Shell) GetShellSurface(surface *Surface) (*ShellSurface, error) {
	ss := &ShellSurface{c: s.c, surface: surface, mirror: shellstate.NewMirror()}
	ss.id = s.c.alloc(ss)
	var enc wire.Encoder
	if err := s.c.send(enc.Uint32(ss.id).Object(surface.id).Message(s.id, wire.ShellGetShellSurface)); err != nil {
		return nil, err
	}
	return ss, nil
}

// ShellSurface mirrors the server state of one window and sends requests
// for it. The mirror only changes through inbound events.
type ShellSurface struct {
	c       *Conn
	id      uint32
	surface *Surface
	mirror  *shellstate.Mirror

	mu         sync.Mutex
	onState    func(shellstate.Change)
	onGeometry func(shellstate.Rect)
}

func (s *ShellSurface) ID() uint32 { return s.id }

func (s *ShellSurface) Surface() *Surface { return s.surface }

// Mirror is the read-only state copy. Accessors on it are safe for
// concurrent use.
func (s *ShellSurface) Mirror() *shellstate.Mirror { return s.mirror }

// OnStateChanged registers the callback fired with the old and new bitmask
// after every state change.
func (s *ShellSurface) OnStateChanged(fn func(shellstate.Change)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// OnGeometry registers the callback fired when the window rectangle
// changed.
func (s *ShellSurface) OnGeometry(fn func(shellstate.Rect)) {
	s.mu.Lock()
	s.onGeometry = fn
	s.mu.Unlock()
}

func (s *ShellSurface) event(m wire.Message) {
	d := wire.NewDecoder(m)
	switch m.Opcode {
	case wire.ShellSurfaceStateChanged:
		state := shellstate.Flags(d.Uint32())
		if err := d.Err(); err != nil {
			s.c.log.Warn("malformed state_changed event", "object", s.id, "err", err)
			return
		}
		change, ok := s.mirror.ApplyStateChanged(state)
		if !ok {
			return
		}
		s.c.log.Debug("state changed", "object", s.id, "old", change.Old.String(), "new", change.New.String())
		s.mu.Lock()
		fn := s.onState
		s.mu.Unlock()
		if fn != nil {
			fn(change)
		}

	case wire.ShellSurfaceGeometry:
		r := shellstate.Rect{X: d.Int32(), Y: d.Int32()}
		r.Width = int32(d.Uint32())
		r.Height = int32(d.Uint32())
		if err := d.Err(); err != nil {
			s.c.log.Warn("malformed geometry event", "object", s.id, "err", err)
			return
		}
		if !s.mirror.ApplyGeometry(r) {
			return
		}
		s.mu.Lock()
		fn := s.onGeometry
		s.mu.Unlock()
		if fn != nil {
			fn(r)
		}

	default:
		s.c.log.Warn("unknown shell surface event", "object", s.id, "opcode", m.Opcode)
	}
}

// RequestState asks the server for a masked state update.
func (s *ShellSurface) RequestState(mask, value shellstate.Flags) error {
	var enc wire.Encoder
	return s.c.send(enc.Uint32(uint32(mask)).Uint32(uint32(value)).Message(s.id, wire.ShellSurfaceSetState))
}

// RequestFlag asks for one flag to be set or cleared.
func (s *ShellSurface) RequestFlag(flag shellstate.Flags, set bool) error {
	var value shellstate.Flags
	if set {
		value = flag
	}
	return s.RequestState(flag, value)
}

// RequestActivate asks for the active flag.
func (s *ShellSurface) RequestActivate() error {
	return s.RequestFlag(shellstate.FlagActive, true)
}

// RequestActive asks the shell to activate the window. The shell answers
// through a state change.
func (s *ShellSurface) RequestActive() error {
	var enc wire.Encoder
	return s.c.send(enc.Message(s.id, wire.ShellSurfaceRequestActive))
}

// RequestGeometry asks the server to resend the current rectangle.
func (s *ShellSurface) RequestGeometry() error {
	var enc wire.Encoder
	return s.c.send(enc.Message(s.id, wire.ShellSurfaceGetGeometry))
}

func (s *ShellSurface) RequestNoTitleBar(value int32) error {
	return s.setProperty(shellstate.PropertyNoTitleBar, shellstate.EncodeNoTitleBar(value))
}

func (s *ShellSurface) RequestWindowRadius(x, y float32) error {
	return s.setProperty(shellstate.PropertyWindowRadius, shellstate.EncodeWindowRadius(x, y))
}

// RequestSplitWindow asks the shell to tile the window.
func (s *ShellSurface) RequestSplitWindow(splitType shellstate.SplitType, mode shellstate.SplitMode) error {
	return s.setProperty(shellstate.PropertyQuickTile, shellstate.EncodeQuickTile(splitType, mode))
}

// SetProperty sends a raw property payload. The server validates it.
func (s *ShellSurface) SetProperty(p shellstate.Property, data []byte) error {
	return s.setProperty(p, data)
}

func (s *ShellSurface) setProperty(p shellstate.Property, data []byte) error {
	var enc wire.Encoder
	return s.c.send(enc.Uint32(uint32(p)).Array(data).Message(s.id, wire.ShellSurfaceSetProperty))
}

func (s *ShellSurface) Destroy() error {
	var enc wire.Encoder
	return s.c.send(enc.Message(s.id, wire.ShellSurfaceDestroy))
}
