package policy

import (
	"fmt"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"github.com/1broseidon/shellbridge/internal/wire"
	"github.com/fxamacker/cbor/v2"
)

// Core deterministic encoding: the same notice always produces the same
// bytes. Unknown fields are ignored on decode.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("policy: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("policy: CBOR decoder initialization failed: " + err.Error())
	}
}

// Bridge frames share the protocol framing. Every frame targets
// bridgeObject; the opcode says what the CBOR payload holds.
const (
	bridgeObject uint32 = 1

	frameNotice  uint16 = 0
	frameCommand uint16 = 1
	frameResult  uint16 = 2
)

// Op names a downward call carried by a Command.
type Op string

const (
	OpSetFlag          Op = "set_flag"
	OpSetState         Op = "set_state"
	OpSendGeometry     Op = "send_geometry"
	OpSendSplitable    Op = "send_splitable"
	OpSetWindowStates  Op = "set_window_states"
	OpSendCaptionImage Op = "send_window_caption_image"
	OpSendCaption      Op = "send_window_caption"
	OpSendSplitChange  Op = "send_split_change"
)

// Command is one downward call sent by a remote policy. Image pixels do
// not travel in the CBOR body: they arrive as a shared memory descriptor
// attached to the frame, described by ImageWidth and ImageHeight.
type Command struct {
	Seq         uint64               `cbor:"seq"`
	Op          Op                   `cbor:"op"`
	Surface     uint64               `cbor:"surface,omitempty"`
	Flag        shellstate.Flags     `cbor:"flag,omitempty"`
	Set         bool                 `cbor:"set,omitempty"`
	Mask        shellstate.Flags     `cbor:"mask,omitempty"`
	Value       shellstate.Flags     `cbor:"value,omitempty"`
	Geometry    shellstate.Rect      `cbor:"geometry"`
	Count       int32                `cbor:"count,omitempty"`
	Windows     []windowdir.Snapshot `cbor:"windows,omitempty"`
	WindowID    int32                `cbor:"window_id,omitempty"`
	Buffer      uint64               `cbor:"buffer,omitempty"`
	ImageWidth  int32                `cbor:"image_width,omitempty"`
	ImageHeight int32                `cbor:"image_height,omitempty"`
	ID          string               `cbor:"id,omitempty"`
}

// Result acknowledges a Command once the server loop ran it.
type Result struct {
	Seq   uint64 `cbor:"seq"`
	Error string `cbor:"error,omitempty"`
}

func encodeFrame(opcode uint16, v any, fds ...int) (wire.Message, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return wire.Message{}, fmt.Errorf("failed to encode bridge frame: %w", err)
	}
	return wire.Message{Object: bridgeObject, Opcode: opcode, Payload: payload, FDs: fds}, nil
}

func decodeFrame(m wire.Message, v any) error {
	if m.Object != bridgeObject {
		return fmt.Errorf("bridge frame for unknown object %d", m.Object)
	}
	if err := decMode.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode bridge frame: %w", err)
	}
	return nil
}
