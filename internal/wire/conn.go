package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const readChunk = 64 * 1024

// Conn frames messages over a unix stream socket. Writes may come from any
// goroutine; reads must come from a single reader goroutine.
type Conn struct {
	uc *net.UnixConn

	wmu sync.Mutex

	rbuf  []byte
	rfds  []int
	oob   []byte
	chunk []byte
}

// NewConn wraps an established unix socket.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{
		uc:    uc,
		oob:   make([]byte, unix.CmsgSpace(MaxFDs*4)),
		chunk: make([]byte, readChunk),
	}
}

// Dial connects to a listening unix socket.
func Dial(path string) (*Conn, error) {
	addr := &net.UnixAddr{Name: path, Net: "unix"}
	uc, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	return NewConn(uc), nil
}

// Pair returns two connected ends of an anonymous socket pair.
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create socket pair: %w", err)
	}
	a, err := fileConn(fds[0], "wire-a")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := fileConn(fds[1], "wire-b")
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

func fileConn(fd int, name string) (*Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	nc, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap socket: %w", err)
	}
	uc, ok := nc.(*net.UnixConn)
	if !ok {
		nc.Close()
		return nil, fmt.Errorf("socket is %T, not a unix connection", nc)
	}
	return NewConn(uc), nil
}

// WriteMessage sends one message and its descriptors. The descriptors stay
// owned by the caller.
func (c *Conn) WriteMessage(m Message) error {
	if len(m.Payload) > MaxPayloadLength {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(m.Payload), MaxPayloadLength)
	}
	if len(m.FDs) > MaxFDs {
		return fmt.Errorf("fd count %d exceeds maximum %d", len(m.FDs), MaxFDs)
	}

	frame := make([]byte, HeaderLength+len(m.Payload))
	putHeader(frame, m)
	copy(frame[HeaderLength:], m.Payload)

	var oob []byte
	if len(m.FDs) > 0 {
		oob = unix.UnixRights(m.FDs...)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	n, _, err := c.uc.WriteMsgUnix(frame, oob, nil)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	for n < len(frame) {
		k, err := c.uc.Write(frame[n:])
		if err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		n += k
	}
	return nil
}

// ReadMessage blocks until one full message and its descriptors arrived.
// The caller owns the returned descriptors.
func (c *Conn) ReadMessage() (Message, error) {
	for len(c.rbuf) < HeaderLength {
		if err := c.fill(); err != nil {
			return Message{}, c.fail(err)
		}
	}
	h, err := parseHeader(c.rbuf[:HeaderLength])
	if err != nil {
		return Message{}, c.fail(err)
	}
	total := HeaderLength + int(h.length)
	for len(c.rbuf) < total || len(c.rfds) < int(h.fdCount) {
		if err := c.fill(); err != nil {
			return Message{}, c.fail(err)
		}
	}

	m := Message{
		Object:  h.object,
		Opcode:  h.opcode,
		Payload: append([]byte(nil), c.rbuf[HeaderLength:total]...),
	}
	c.rbuf = c.rbuf[total:]
	if h.fdCount > 0 {
		m.FDs = append([]int(nil), c.rfds[:h.fdCount]...)
		c.rfds = c.rfds[h.fdCount:]
	}
	return m, nil
}

func (c *Conn) fail(err error) error {
	CloseFDs(c.rfds)
	c.rfds = nil
	return err
}

func (c *Conn) fill() error {
	buf := c.chunk
	n, oobn, _, _, err := c.uc.ReadMsgUnix(buf, c.oob)
	if oobn > 0 {
		fds, perr := parseRights(c.oob[:oobn])
		c.rfds = append(c.rfds, fds...)
		if perr != nil && err == nil {
			err = perr
		}
	}
	if n > 0 {
		c.rbuf = append(c.rbuf, buf[:n]...)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

func parseRights(oob []byte) ([]int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// Close closes the socket. A blocked ReadMessage returns an error and
// releases descriptors it was still holding.
func (c *Conn) Close() error {
	return c.uc.Close()
}

// IsClosed reports whether err means the peer went away.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE)
}

// CloseFDs closes every descriptor in fds.
func CloseFDs(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
