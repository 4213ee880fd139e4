// Package wire is the framed message transport shared by the server and
// client halves of the shell protocol.
//
// Every message is a 12-byte little-endian header followed by the payload:
//
//	[object u32] [opcode u16] [fd count u16] [payload length u32] [payload]
//
// File descriptors travel out of band as SCM_RIGHTS ancillary data on the
// unix stream socket and are matched to messages by count, in order.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderLength is the fixed size of a message header.
	HeaderLength = 12

	// MaxPayloadLength bounds a single message. A full window directory
	// (100 records) is under 30 KiB.
	MaxPayloadLength = 1 << 20

	// MaxFDs bounds the descriptors carried by one message.
	MaxFDs = 28
)

// Message is one request or event.
type Message struct {
	Object  uint32
	Opcode  uint16
	Payload []byte
	FDs     []int
}

func (m Message) String() string {
	return fmt.Sprintf("object=%d opcode=%d len=%d fds=%d", m.Object, m.Opcode, len(m.Payload), len(m.FDs))
}

func putHeader(dst []byte, m Message) {
	binary.LittleEndian.PutUint32(dst[0:4], m.Object)
	binary.LittleEndian.PutUint16(dst[4:6], m.Opcode)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(len(m.FDs)))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(len(m.Payload)))
}

type header struct {
	object  uint32
	opcode  uint16
	fdCount uint16
	length  uint32
}

func parseHeader(src []byte) (header, error) {
	h := header{
		object:  binary.LittleEndian.Uint32(src[0:4]),
		opcode:  binary.LittleEndian.Uint16(src[4:6]),
		fdCount: binary.LittleEndian.Uint16(src[6:8]),
		length:  binary.LittleEndian.Uint32(src[8:12]),
	}
	if h.length > MaxPayloadLength {
		return h, fmt.Errorf("payload length %d exceeds maximum %d", h.length, MaxPayloadLength)
	}
	if h.fdCount > MaxFDs {
		return h, fmt.Errorf("fd count %d exceeds maximum %d", h.fdCount, MaxFDs)
	}
	return h, nil
}
