package server

import (
	"slices"

	"github.com/1broseidon/shellbridge/internal/capture"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/shm"
	"github.com/1broseidon/shellbridge/internal/wire"
)

func badArguments(object uint32, opcode uint16, err error) error {
	return protocolError(object, wire.ErrInvalidMethod, "opcode %d: %v", opcode, err)
}

func unknownOpcode(object uint32, opcode uint16) error {
	return protocolError(object, wire.ErrInvalidMethod, "unknown opcode %d", opcode)
}

// display is object 1 of every connection.
type display struct {
	c *client
}

func (o *display) request(opcode uint16, d *wire.Decoder) error {
	c := o.c
	switch opcode {
	case wire.DisplaySync:
		id := d.Uint32()
		if err := d.Err(); err != nil {
			return badArguments(wire.DisplayObject, opcode, err)
		}
		if id < wire.FirstClientObject {
			return protocolError(wire.DisplayObject, wire.ErrInvalidObject, "new id %d is reserved", id)
		}
		if _, exists := c.objects[id]; exists {
			return protocolError(wire.DisplayObject, wire.ErrInvalidObject, "new id %d already in use", id)
		}
		c.srv.serial++
		var enc wire.Encoder
		c.send(enc.Uint32(c.srv.serial).Message(id, wire.CallbackDone))
		c.deleteID(id)
		return nil

	case wire.DisplayBind:
		name := d.Text()
		id := d.Uint32()
		if err := d.Err(); err != nil {
			return badArguments(wire.DisplayObject, opcode, err)
		}
		switch name {
		case wire.InterfaceShell:
			return c.register(id, &shell{c: c, id: id})
		case wire.InterfaceClientManagement:
			m := &management{c: c, id: id}
			if err := c.register(id, m); err != nil {
				return err
			}
			c.srv.management = append(c.srv.management, m)
			c.log.Debug("client management bound", "object", id)
			return nil
		default:
			return protocolError(wire.DisplayObject, wire.ErrUnknownGlobal, "no global named %q", name)
		}

	case wire.DisplayCreateSurface:
		id := d.Uint32()
		windowID := d.Int32()
		if err := d.Err(); err != nil {
			return badArguments(wire.DisplayObject, opcode, err)
		}
		return c.register(id, &surface{c: c, id: id, windowID: windowID})

	case wire.DisplayCreateBuffer:
		id := d.Uint32()
		width := d.Int32()
		height := d.Int32()
		stride := d.Int32()
		format := d.Uint32()
		if err := d.Err(); err != nil {
			return badArguments(wire.DisplayObject, opcode, err)
		}
		if _, exists := c.objects[id]; exists || id < wire.FirstClientObject {
			return protocolError(wire.DisplayObject, wire.ErrInvalidObject, "new id %d is not available", id)
		}
		fd := d.FD()
		if err := d.Err(); err != nil {
			return protocolError(wire.DisplayObject, wire.ErrInvalidFD, "create_buffer: %v", err)
		}
		mem, err := shm.FromFD(fd, width, height, stride, format)
		if err != nil {
			return protocolError(wire.DisplayObject, wire.ErrInvalidFD, "create_buffer: %v", err)
		}
		b := &buffer{c: c, id: id, handle: c.srv.allocHandle(), shm: mem}
		c.srv.buffers[b.handle] = b
		return c.register(id, b)

	default:
		return unknownOpcode(wire.DisplayObject, opcode)
	}
}

func (o *display) release() {}

// surface stands for one window on the compositor.
type surface struct {
	c        *client
	id       uint32
	windowID int32
	attached *buffer
	shell    *shellSurface
}

func (o *surface) request(opcode uint16, d *wire.Decoder) error {
	switch opcode {
	case wire.SurfaceDestroy:
		o.c.remove(o.id)
		return nil
	case wire.SurfaceAttach:
		id := d.Object()
		if err := d.Err(); err != nil {
			return badArguments(o.id, opcode, err)
		}
		if id == 0 {
			o.attached = nil
			return nil
		}
		b, ok := lookup[*buffer](o.c, id)
		if !ok {
			return protocolError(o.id, wire.ErrInvalidObject, "object %d is not a buffer", id)
		}
		o.attached = b
		return nil
	default:
		return unknownOpcode(o.id, opcode)
	}
}

func (o *surface) release() {
	if o.shell != nil {
		o.c.remove(o.shell.id)
	}
	o.attached = nil
}

// buffer is a shared memory pixel buffer, or a placeholder capture target
// with no memory when id is 0.
type buffer struct {
	c      *client
	id     uint32
	handle uint64
	shm    *shm.Buffer
}

var _ capture.Buffer = (*buffer)(nil)

func (o *buffer) Handle() uint64 { return o.handle }

func (o *buffer) Shared() capture.Shared {
	if o.shm == nil {
		return nil
	}
	return o.shm
}

func (o *buffer) request(opcode uint16, d *wire.Decoder) error {
	switch opcode {
	case wire.BufferDestroy:
		o.c.remove(o.id)
		return nil
	default:
		return unknownOpcode(o.id, opcode)
	}
}

func (o *buffer) release() {
	delete(o.c.srv.buffers, o.handle)
	if o.shm != nil {
		o.shm.Close()
		o.shm = nil
	}
}

// shell is a bound "shell" global.
type shell struct {
	c  *client
	id uint32
}

func (o *shell) request(opcode uint16, d *wire.Decoder) error {
	if opcode != wire.ShellGetShellSurface {
		return unknownOpcode(o.id, opcode)
	}
	id := d.Uint32()
	surfaceID := d.Object()
	if err := d.Err(); err != nil {
		return badArguments(o.id, opcode, err)
	}
	sf, ok := lookup[*surface](o.c, surfaceID)
	if !ok {
		return protocolError(o.id, wire.ErrInvalidObject, "object %d is not a surface", surfaceID)
	}
	if sf.shell != nil {
		return protocolError(o.id, wire.ErrShellSurfaceExists, "surface %d already has shell surface %d", surfaceID, sf.shell.id)
	}

	srv := o.c.srv
	ss := &shellSurface{c: o.c, id: id, surface: sf, state: shellstate.NewState(shellstate.FlagAcceptFocus)}
	if err := o.c.register(id, ss); err != nil {
		return err
	}
	ss.handle = srv.allocHandle()
	sf.shell = ss
	srv.shellSurfaces[ss.handle] = ss
	o.c.log.Debug("shell surface created", "object", id, "surface", ss.handle, "window_id", sf.windowID)
	srv.publish(policy.Notice{Kind: policy.KindShellSurfaceCreated, Surface: ss.handle, WindowID: sf.windowID})
	return nil
}

func (o *shell) release() {}

// shellSurface carries the canonical state of one window.
type shellSurface struct {
	c       *client
	id      uint32
	handle  uint64
	surface *surface
	state   *shellstate.State
}

func (o *shellSurface) notice(kind policy.Kind) policy.Notice {
	return policy.Notice{Kind: kind, Surface: o.handle, WindowID: o.surface.windowID}
}

func (o *shellSurface) request(opcode uint16, d *wire.Decoder) error {
	srv := o.c.srv
	switch opcode {
	case wire.ShellSurfaceGetGeometry:
		// Echo what is known; without a usable rectangle the policy is
		// asked to push one with SendGeometry.
		if g := o.state.Geometry(); g.Valid() {
			o.sendGeometry(g)
			return nil
		}
		srv.publish(o.notice(policy.KindGeometryRequested))
		return nil

	case wire.ShellSurfaceRequestActive:
		srv.publish(o.notice(policy.KindActivationRequested))
		return nil

	case wire.ShellSurfaceSetState:
		mask := shellstate.Flags(d.Uint32())
		value := shellstate.Flags(d.Uint32())
		if err := d.Err(); err != nil {
			return badArguments(o.id, opcode, err)
		}
		if change, ok := o.state.Set(mask, value); ok {
			o.sendState(change.New)
		}
		(mask & shellstate.BooleanFlags).Each(func(flag shellstate.Flags) {
			n := o.notice(policy.KindFlagRequested)
			n.Flag = flag
			n.Value = value.Has(flag)
			srv.publish(n)
		})
		return nil

	case wire.ShellSurfaceSetProperty:
		prop := shellstate.Property(d.Uint32())
		data := d.Array()
		if err := d.Err(); err != nil {
			return badArguments(o.id, opcode, err)
		}
		v, err := shellstate.DecodeProperty(prop, data)
		if err != nil {
			return protocolError(o.id, wire.ErrInvalidProperty, "%v", err)
		}
		switch v.Property {
		case shellstate.PropertyNoTitleBar:
			n := o.notice(policy.KindNoTitleBarRequested)
			n.NoTitleBar = v.NoTitleBar
			srv.publish(n)
		case shellstate.PropertyWindowRadius:
			n := o.notice(policy.KindWindowRadiusRequested)
			n.RadiusX, n.RadiusY = v.RadiusX, v.RadiusY
			srv.publish(n)
		case shellstate.PropertyQuickTile:
			srv.splits.RequestSurfaceSplit(o.handle, v.SplitType, v.SplitMode)
		}
		return nil

	case wire.ShellSurfaceDestroy:
		o.c.remove(o.id)
		return nil

	default:
		return unknownOpcode(o.id, opcode)
	}
}

func (o *shellSurface) release() {
	srv := o.c.srv
	delete(srv.shellSurfaces, o.handle)
	if o.surface.shell == o {
		o.surface.shell = nil
	}
	srv.publish(o.notice(policy.KindShellSurfaceDestroyed))
}

func (o *shellSurface) sendState(f shellstate.Flags) {
	var enc wire.Encoder
	o.c.send(enc.Uint32(uint32(f)).Message(o.id, wire.ShellSurfaceStateChanged))
}

func (o *shellSurface) sendGeometry(r shellstate.Rect) {
	var enc wire.Encoder
	o.c.send(enc.Int32(r.X).Int32(r.Y).Uint32(uint32(r.Width)).Uint32(uint32(r.Height)).Message(o.id, wire.ShellSurfaceGeometry))
}

// management is a bound "client_management" global.
type management struct {
	c  *client
	id uint32
}

func (o *management) request(opcode uint16, d *wire.Decoder) error {
	srv := o.c.srv
	switch opcode {
	case wire.ManagementGetWindowStates:
		srv.publish(policy.Notice{Kind: policy.KindWindowStatesRequest})
		return nil

	case wire.ManagementCaptureWindowImage:
		windowID := d.Int32()
		bufferID := d.Object()
		if err := d.Err(); err != nil {
			return badArguments(o.id, opcode, err)
		}
		var target *buffer
		if bufferID == 0 {
			// No destination memory: the capture can only fail, but the
			// request still travels and completes like any other. Handle
			// zero is never registered, so nothing waits for the answer.
			target = &buffer{c: o.c}
		} else {
			b, ok := lookup[*buffer](o.c, bufferID)
			if !ok {
				return protocolError(o.id, wire.ErrInvalidObject, "object %d is not a buffer", bufferID)
			}
			target = b
		}
		srv.captures.Request(windowID, target)
		return nil

	case wire.ManagementSplitWindow:
		id := d.Text()
		splitType := shellstate.SplitType(d.Int32())
		if err := d.Err(); err != nil {
			return badArguments(o.id, opcode, err)
		}
		srv.splits.RequestSplitWindow(id, splitType)
		return nil

	default:
		return unknownOpcode(o.id, opcode)
	}
}

func (o *management) release() {
	srv := o.c.srv
	srv.management = slices.DeleteFunc(srv.management, func(m *management) bool { return m == o })
}

func (o *management) sendWindowStates(count uint32, data []byte) {
	var enc wire.Encoder
	o.c.send(enc.Uint32(count).Array(data).Message(o.id, wire.ManagementWindowStates))
}

func (o *management) sendCaptureCallback(windowID int32, succeed bool, bufferID uint32) {
	var ok int32
	if succeed {
		ok = 1
	}
	var enc wire.Encoder
	o.c.send(enc.Int32(windowID).Int32(ok).Object(bufferID).Message(o.id, wire.ManagementCaptureCallback))
}

func (o *management) sendSplitChange(id string, count int32) {
	var enc wire.Encoder
	o.c.send(enc.Text(id).Int32(count).Message(o.id, wire.ManagementSplitChange))
}
