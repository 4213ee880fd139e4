// Package client is the shell-side half of the protocol: it binds the
// shell and client-management globals, mirrors shell surface state and
// caches the window directory.
//
// One reader goroutine dispatches events in arrival order. Callbacks run
// on that goroutine and must not block.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/shellbridge/internal/shm"
	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

// ErrClosed is returned by requests after the connection ended.
var ErrClosed = errors.New("connection closed")

// Options configures a Conn.
type Options struct {
	Logger pslog.Logger
	// OnError receives display.error events. Errors are always logged.
	OnError func(*wire.ProtocolError)
}

type eventHandler interface {
	event(m wire.Message)
}

// Conn is a client connection to a shellbridge server.
type Conn struct {
	conn    *wire.Conn
	log     pslog.Logger
	onError func(*wire.ProtocolError)
	done    chan struct{}

	mu      sync.Mutex
	nextID  uint32
	objects map[uint32]eventHandler
	lastErr *wire.ProtocolError
}

// Dial connects to the server socket at path.
func Dial(path string, opts Options) (*Conn, error) {
	conn, err := wire.Dial(path)
	if err != nil {
		return nil, err
	}
	return New(conn, opts), nil
}

// New starts a client on an established connection.
func New(conn *wire.Conn, opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Conn{
		conn:    conn,
		log:     logger,
		onError: opts.OnError,
		done:    make(chan struct{}),
		nextID:  wire.FirstClientObject,
		objects: make(map[uint32]eventHandler),
	}
	go c.readLoop()
	return c
}

// Close ends the connection and waits for the reader to stop.
func (c *Conn) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed when the connection ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// LastError returns the most recent protocol error, if any.
func (c *Conn) LastError() *wire.ProtocolError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Conn) alloc(h eventHandler) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	if h != nil {
		c.objects[id] = h
	}
	return id
}

func (c *Conn) send(m wire.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.conn.WriteMessage(m); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		m, err := c.conn.ReadMessage()
		if err != nil {
			if !wire.IsClosed(err) {
				c.log.Warn("server read failed", "err", err)
			}
			return
		}
		c.dispatch(m)
	}
}

func (c *Conn) dispatch(m wire.Message) {
	defer wire.CloseFDs(m.FDs)

	if m.Object == wire.DisplayObject {
		c.displayEvent(m)
		return
	}
	c.mu.Lock()
	h := c.objects[m.Object]
	c.mu.Unlock()
	if h == nil {
		c.log.Debug("event for unknown object", "object", m.Object, "opcode", m.Opcode)
		return
	}
	h.event(m)
}

func (c *Conn) displayEvent(m wire.Message) {
	switch m.Opcode {
	case wire.DisplayError:
		pe, err := wire.ParseErrorEvent(m)
		if err != nil {
			c.log.Warn("malformed error event", "err", err)
			return
		}
		c.log.Warn("protocol error", "object", pe.Object, "code", pe.Code.String(), "message", pe.Message)
		c.mu.Lock()
		c.lastErr = pe
		c.mu.Unlock()
		if c.onError != nil {
			c.onError(pe)
		}
	case wire.DisplayDeleteID:
		d := wire.NewDecoder(m)
		id := d.Uint32()
		if d.Err() != nil {
			c.log.Warn("malformed delete_id event", "err", d.Err())
			return
		}
		c.mu.Lock()
		delete(c.objects, id)
		c.mu.Unlock()
	default:
		c.log.Warn("unknown display event", "opcode", m.Opcode)
	}
}

type callback struct {
	done chan uint32
}

func (cb *callback) event(m wire.Message) {
	if m.Opcode != wire.CallbackDone {
		return
	}
	d := wire.NewDecoder(m)
	serial := d.Uint32()
	select {
	case cb.done <- serial:
	default:
	}
}

// Roundtrip waits until the server processed every earlier request and
// all events they caused were dispatched.
func (c *Conn) Roundtrip(ctx context.Context) error {
	cb := &callback{done: make(chan uint32, 1)}
	id := c.alloc(cb)
	var enc wire.Encoder
	if err := c.send(enc.Uint32(id).Message(wire.DisplayObject, wire.DisplaySync)); err != nil {
		return err
	}
	select {
	case <-cb.done:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BindShell binds the "shell" global.
func (c *Conn) BindShell() (*Shell, error) {
	s := &Shell{c: c}
	s.id = c.alloc(nil)
	if err := c.bind(wire.InterfaceShell, s.id); err != nil {
		return nil, err
	}
	return s, nil
}

// BindClientManagement binds the "client_management" global.
func (c *Conn) BindClientManagement() (*ClientManagement, error) {
	cm := &ClientManagement{c: c}
	cm.id = c.alloc(cm)
	if err := c.bind(wire.InterfaceClientManagement, cm.id); err != nil {
		return nil, err
	}
	return cm, nil
}

func (c *Conn) bind(name string, id uint32) error {
	var enc wire.Encoder
	return c.send(enc.Text(name).Uint32(id).Message(wire.DisplayObject, wire.DisplayBind))
}

// Surface is a client handle for one window.
type Surface struct {
	c        *Conn
	id       uint32
	windowID int32
}

func (s *Surface) ID() uint32      { return s.id }
func (s *Surface) WindowID() int32 { return s.windowID }

// CreateSurface announces a window to the server.
func (c *Conn) CreateSurface(windowID int32) (*Surface, error) {
	s := &Surface{c: c, windowID: windowID}
	s.id = c.alloc(nil)
	var enc wire.Encoder
	if err := c.send(enc.Uint32(s.id).Int32(windowID).Message(wire.DisplayObject, wire.DisplayCreateSurface)); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach makes b the surface content. A nil buffer detaches.
func (s *Surface) Attach(b *Buffer) error {
	var id uint32
	if b != nil {
		id = b.id
	}
	var enc wire.Encoder
	return s.c.send(enc.Object(id).Message(s.id, wire.SurfaceAttach))
}

func (s *Surface) Destroy() error {
	var enc wire.Encoder
	return s.c.send(enc.Message(s.id, wire.SurfaceDestroy))
}

// Buffer is a shared memory buffer known to the server.
type Buffer struct {
	c   *Conn
	id  uint32
	mem *shm.Buffer
}

func (b *Buffer) ID() uint32 { return b.id }

// Memory is the local mapping of the buffer.
func (b *Buffer) Memory() *shm.Buffer { return b.mem }

// CreateBuffer allocates a width x height ABGR8888 buffer and shares it
// with the server.
func (c *Conn) CreateBuffer(width, height int32) (*Buffer, error) {
	mem, err := shm.New(width, height)
	if err != nil {
		return nil, err
	}
	b := &Buffer{c: c, mem: mem}
	b.id = c.alloc(nil)
	var enc wire.Encoder
	m := enc.Uint32(b.id).
		Int32(mem.Width()).
		Int32(mem.Height()).
		Int32(mem.Stride()).
		Uint32(mem.Format()).
		FD(mem.FD()).
		Message(wire.DisplayObject, wire.DisplayCreateBuffer)
	if err := c.send(m); err != nil {
		mem.Close()
		return nil, err
	}
	return b, nil
}

// Destroy releases the buffer on the server and unmaps it locally.
func (b *Buffer) Destroy() error {
	var enc wire.Encoder
	err := b.c.send(enc.Message(b.id, wire.BufferDestroy))
	b.mem.Close()
	return err
}
