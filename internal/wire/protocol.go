package wire

import "fmt"

// DisplayObject is the id of the bootstrap object every connection starts
// with.
const DisplayObject uint32 = 1

// FirstClientObject is the first id a client may allocate.
const FirstClientObject uint32 = 2

// Global interface names accepted by display.bind.
const (
	InterfaceShell            = "shell"
	InterfaceClientManagement = "client_management"
)

// display requests
const (
	DisplaySync          uint16 = 0
	DisplayBind          uint16 = 1
	DisplayCreateSurface uint16 = 2
	DisplayCreateBuffer  uint16 = 3
)

// display events
const (
	DisplayError    uint16 = 0
	DisplayDeleteID uint16 = 1
)

// callback events
const CallbackDone uint16 = 0

// surface requests
const (
	SurfaceDestroy uint16 = 0
	SurfaceAttach  uint16 = 1
)

// buffer requests
const BufferDestroy uint16 = 0

// shell requests
const ShellGetShellSurface uint16 = 0

// shell surface requests
const (
	ShellSurfaceGetGeometry   uint16 = 0
	ShellSurfaceRequestActive uint16 = 1
	ShellSurfaceSetState      uint16 = 2
	ShellSurfaceSetProperty   uint16 = 3
	ShellSurfaceDestroy       uint16 = 4
)

// shell surface events
const (
	ShellSurfaceGeometry     uint16 = 0
	ShellSurfaceStateChanged uint16 = 1
)

// client management requests
const (
	ManagementGetWindowStates    uint16 = 0
	ManagementCaptureWindowImage uint16 = 1
	ManagementSplitWindow        uint16 = 2
)

// client management events
const (
	ManagementWindowStates    uint16 = 0
	ManagementCaptureCallback uint16 = 1
	ManagementSplitChange     uint16 = 2
)

// ErrorCode classifies a display.error event.
type ErrorCode uint32

const (
	ErrInvalidObject      ErrorCode = 0
	ErrInvalidMethod      ErrorCode = 1
	ErrNoMemory           ErrorCode = 2
	ErrImplementation     ErrorCode = 3
	ErrShellSurfaceExists ErrorCode = 10
	ErrInvalidProperty    ErrorCode = 11
	ErrUnknownGlobal      ErrorCode = 12
	ErrInvalidFD          ErrorCode = 13
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidObject:
		return "invalid_object"
	case ErrInvalidMethod:
		return "invalid_method"
	case ErrNoMemory:
		return "no_memory"
	case ErrImplementation:
		return "implementation"
	case ErrShellSurfaceExists:
		return "shell_surface_exists"
	case ErrInvalidProperty:
		return "invalid_property"
	case ErrUnknownGlobal:
		return "unknown_global"
	case ErrInvalidFD:
		return "invalid_fd"
	default:
		return fmt.Sprintf("error(%d)", uint32(c))
	}
}

// ProtocolError is a display.error scoped to one request. The connection
// stays usable.
type ProtocolError struct {
	Object  uint32
	Code    ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on object %d: %s: %s", e.Object, e.Code, e.Message)
}

// ErrorEvent encodes a display.error event.
func ErrorEvent(e *ProtocolError) Message {
	var enc Encoder
	return enc.Object(e.Object).Uint32(uint32(e.Code)).Text(e.Message).Message(DisplayObject, DisplayError)
}

// ParseErrorEvent decodes a display.error event.
func ParseErrorEvent(m Message) (*ProtocolError, error) {
	d := NewDecoder(m)
	e := &ProtocolError{
		Object: d.Object(),
		Code:   ErrorCode(d.Uint32()),
	}
	e.Message = d.Text()
	if err := d.Err(); err != nil {
		return nil, err
	}
	return e, nil
}
