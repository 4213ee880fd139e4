package server

import (
	"errors"
	"fmt"

	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

// object is one protocol object bound in a client's id space.
type object interface {
	// request runs one request. A *wire.ProtocolError is reported to the
	// client; other errors become implementation errors.
	request(opcode uint16, d *wire.Decoder) error
	// release drops server state when the object or its client goes away.
	release()
}

// outboundQueue is how many events may wait for a client's writer. A
// client that lets it fill up is disconnected.
const outboundQueue = 256

// client is the server side of one connection. objects and closed are
// owned by the event loop; the writer goroutine only drains out.
type client struct {
	srv     *Server
	conn    *wire.Conn
	id      uint64
	log     pslog.Logger
	objects map[uint32]object
	closed  bool

	out  chan wire.Message
	done chan struct{}
}

func newClient(s *Server, conn *wire.Conn) *client {
	id := s.nextClient.Add(1)
	c := &client{
		srv:     s,
		conn:    conn,
		id:      id,
		log:     s.log.With("client", id),
		objects: make(map[uint32]object),
		out:     make(chan wire.Message, outboundQueue),
		done:    make(chan struct{}),
	}
	c.objects[wire.DisplayObject] = &display{c: c}
	return c
}

func protocolError(object uint32, code wire.ErrorCode, format string, args ...any) error {
	return &wire.ProtocolError{Object: object, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (c *client) dispatch(m wire.Message) {
	if c.closed {
		wire.CloseFDs(m.FDs)
		return
	}
	c.log.Debug("request", "object", m.Object, "opcode", m.Opcode, "len", len(m.Payload))

	obj, ok := c.objects[m.Object]
	if !ok {
		wire.CloseFDs(m.FDs)
		c.sendError(&wire.ProtocolError{Object: m.Object, Code: wire.ErrInvalidObject, Message: "unknown object"})
		return
	}

	d := wire.NewDecoder(m)
	err := obj.request(m.Opcode, d)
	wire.CloseFDs(d.UnusedFDs())
	if err == nil {
		return
	}
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		pe = &wire.ProtocolError{Object: m.Object, Code: wire.ErrImplementation, Message: err.Error()}
	}
	c.sendError(pe)
}

func (c *client) sendError(pe *wire.ProtocolError) {
	c.log.Warn("protocol error", "object", pe.Object, "code", pe.Code.String(), "message", pe.Message)
	c.send(wire.ErrorEvent(pe))
}

// send queues m for the writer and never blocks the loop.
func (c *client) send(m wire.Message) {
	if c.closed {
		return
	}
	select {
	case c.out <- m:
	default:
		c.log.Warn("outbound queue full, dropping client", "object", m.Object, "opcode", m.Opcode, "queued", len(c.out))
		c.disconnect()
	}
}

// disconnect stops event delivery and closes the socket. The reader then
// fails and posts teardown.
func (c *client) disconnect() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
}

// writeLoop writes queued events until the client is disconnected, a write
// fails or the event loop stops.
func (c *client) writeLoop() {
	for {
		select {
		case m := <-c.out:
			if err := c.conn.WriteMessage(m); err != nil {
				if !wire.IsClosed(err) {
					c.log.Warn("event write failed, dropping client", "object", m.Object, "opcode", m.Opcode, "err", err)
				}
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		case <-c.srv.stopped:
			return
		}
	}
}

// register binds a client allocated id to obj.
func (c *client) register(id uint32, obj object) error {
	if id < wire.FirstClientObject {
		return protocolError(wire.DisplayObject, wire.ErrInvalidObject, "new id %d is reserved", id)
	}
	if _, exists := c.objects[id]; exists {
		return protocolError(wire.DisplayObject, wire.ErrInvalidObject, "new id %d already in use", id)
	}
	c.objects[id] = obj
	return nil
}

// remove unbinds id and tells the client it may reuse it.
func (c *client) remove(id uint32) {
	obj, ok := c.objects[id]
	if !ok {
		return
	}
	delete(c.objects, id)
	obj.release()
	c.deleteID(id)
}

func (c *client) deleteID(id uint32) {
	var enc wire.Encoder
	c.send(enc.Uint32(id).Message(wire.DisplayObject, wire.DisplayDeleteID))
}

// lookup returns the object bound to id if it has type T.
func lookup[T object](c *client, id uint32) (T, bool) {
	obj, ok := c.objects[id]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := obj.(T)
	return t, ok
}

// teardown releases every object after the connection ended.
func (c *client) teardown() {
	if _, ok := c.srv.clients[c]; !ok {
		return
	}
	delete(c.srv.clients, c)
	c.disconnect()

	// Shell surfaces first so their destroyed notices precede buffer
	// cleanup; order among the rest does not matter.
	for id, obj := range c.objects {
		if _, ok := obj.(*shellSurface); ok {
			delete(c.objects, id)
			obj.release()
		}
	}
	for id, obj := range c.objects {
		delete(c.objects, id)
		obj.release()
	}
	for handle, b := range c.srv.buffers {
		if b.c == c {
			delete(c.srv.buffers, handle)
		}
	}
	c.log.Info("client disconnected")
}
