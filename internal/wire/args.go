package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload is returned when a request or event ends before all its
// arguments were read.
var ErrShortPayload = errors.New("payload too short for arguments")

// Encoder builds a message payload argument by argument.
type Encoder struct {
	buf []byte
	fds []int
}

func (e *Encoder) Int32(v int32) *Encoder {
	return e.Uint32(uint32(v))
}

func (e *Encoder) Uint32(v uint32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
	return e
}

// Object writes an object id; 0 is the null object.
func (e *Encoder) Object(id uint32) *Encoder {
	return e.Uint32(id)
}

// Text writes a length-prefixed, NUL-terminated, 4-byte padded string.
func (e *Encoder) Text(s string) *Encoder {
	e.Uint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.pad()
	return e
}

// Array writes a length-prefixed, 4-byte padded byte array.
func (e *Encoder) Array(b []byte) *Encoder {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad()
	return e
}

// FD queues a descriptor to travel with the message.
func (e *Encoder) FD(fd int) *Encoder {
	e.fds = append(e.fds, fd)
	return e
}

func (e *Encoder) pad() {
	for len(e.buf)%4 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Message wraps the encoded arguments for object/opcode.
func (e *Encoder) Message(object uint32, opcode uint16) Message {
	return Message{Object: object, Opcode: opcode, Payload: e.buf, FDs: e.fds}
}

// Decoder reads arguments from a payload. The first failure sticks; check
// Err once after reading every argument.
type Decoder struct {
	buf []byte
	fds []int
	err error
}

// NewDecoder reads the arguments of m.
func NewDecoder(m Message) *Decoder {
	return &Decoder{buf: m.Payload, fds: m.FDs}
}

func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

func (d *Decoder) Uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 4 {
		d.err = ErrShortPayload
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v
}

func (d *Decoder) Object() uint32 {
	return d.Uint32()
}

// Text reads a string argument.
func (d *Decoder) Text() string {
	n := d.Uint32()
	if d.err != nil {
		return ""
	}
	if n == 0 {
		return ""
	}
	raw := d.take(n)
	if d.err != nil {
		return ""
	}
	if raw[len(raw)-1] != 0 {
		d.err = fmt.Errorf("string argument is not NUL terminated")
		return ""
	}
	return string(raw[:len(raw)-1])
}

// Array returns a copy of the next array argument.
func (d *Decoder) Array() []byte {
	n := d.Uint32()
	if d.err != nil {
		return nil
	}
	raw := d.take(n)
	if d.err != nil {
		return nil
	}
	return append([]byte(nil), raw...)
}

// FD takes the next descriptor that arrived with the message.
func (d *Decoder) FD() int {
	if d.err != nil {
		return -1
	}
	if len(d.fds) == 0 {
		d.err = fmt.Errorf("missing file descriptor argument")
		return -1
	}
	fd := d.fds[0]
	d.fds = d.fds[1:]
	return fd
}

func (d *Decoder) take(n uint32) []byte {
	padded := (int(n) + 3) &^ 3
	if int(n) > len(d.buf) || padded > len(d.buf) {
		d.err = ErrShortPayload
		return nil
	}
	raw := d.buf[:n]
	d.buf = d.buf[padded:]
	return raw
}

// Err returns the first decoding failure.
func (d *Decoder) Err() error {
	return d.err
}

// UnusedFDs returns descriptors the handler did not consume so the caller
// can close them.
func (d *Decoder) UnusedFDs() []int {
	return d.fds
}
