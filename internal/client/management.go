package client

import (
	"sync"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/split"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"github.com/1broseidon/shellbridge/internal/wire"
)

// CaptureResult is one capture_callback event. BufferID is the buffer
// object when this client owns it, otherwise 0.
type CaptureResult struct {
	WindowID int32  `json:"window_id"`
	Succeed  bool   `json:"succeed"`
	BufferID uint32 `json:"buffer_id"`
}

// ClientManagement is a bound "client_management" global.
type ClientManagement struct {
	c     *Conn
	id    uint32
	cache windowdir.Cache

	mu             sync.Mutex
	split          split.Slot
	hasSplit       bool
	onWindowStates func([]windowdir.Snapshot)
	onCapture      func(CaptureResult)
	onSplitChange  func(split.Slot)
}

func (cm *ClientManagement) ID() uint32 { return cm.id }

// OnWindowStates registers the callback fired after every accepted
// window list.
func (cm *ClientManagement) OnWindowStates(fn func([]windowdir.Snapshot)) {
	cm.mu.Lock()
	cm.onWindowStates = fn
	cm.mu.Unlock()
}

// OnCapture registers the callback fired for every capture_callback,
// including captures requested by other clients.
func (cm *ClientManagement) OnCapture(fn func(CaptureResult)) {
	cm.mu.Lock()
	cm.onCapture = fn
	cm.mu.Unlock()
}

func (cm *ClientManagement) OnSplitChange(fn func(split.Slot)) {
	cm.mu.Lock()
	cm.onSplitChange = fn
	cm.mu.Unlock()
}

// GetWindowStates returns the cached window list without blocking. While
// the cache is empty it also asks the server for the list; the answer
// arrives later through OnWindowStates.
func (cm *ClientManagement) GetWindowStates() []windowdir.Snapshot {
	if cm.cache.Len() == 0 {
		cm.c.log.Debug("window cache empty, requesting window states")
		if err := cm.RequestWindowStates(); err != nil {
			cm.c.log.Warn("get_window_states failed", "err", err)
		}
	}
	return cm.cache.Snapshots()
}

// RequestWindowStates asks the server for a fresh window list.
func (cm *ClientManagement) RequestWindowStates() error {
	var enc wire.Encoder
	return cm.c.send(enc.Message(cm.id, wire.ManagementGetWindowStates))
}

// CaptureWindowImage asks for the pixels of a window in buf. A nil buf
// sends the null object; such a capture always fails.
func (cm *ClientManagement) CaptureWindowImage(windowID int32, buf *Buffer) error {
	var id uint32
	if buf != nil {
		id = buf.id
	}
	var enc wire.Encoder
	return cm.c.send(enc.Int32(windowID).Object(id).Message(cm.id, wire.ManagementCaptureWindowImage))
}

// SplitWindow asks the shell to tile the window named by id.
func (cm *ClientManagement) SplitWindow(id string, splitType shellstate.SplitType) error {
	var enc wire.Encoder
	return cm.c.send(enc.Text(id).Int32(int32(splitType)).Message(cm.id, wire.ManagementSplitWindow))
}

// SplitChange returns the last split change received.
func (cm *ClientManagement) SplitChange() (split.Slot, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.split, cm.hasSplit
}

func (cm *ClientManagement) event(m wire.Message) {
	d := wire.NewDecoder(m)
	log := cm.c.log
	switch m.Opcode {
	case wire.ManagementWindowStates:
		count := d.Uint32()
		data := d.Array()
		if err := d.Err(); err != nil {
			log.Warn("malformed window_states event", "err", err)
			return
		}
		if err := cm.cache.Apply(count, data); err != nil {
			log.Warn("window_states rejected, keeping previous list", "count", count, "size", len(data), "err", err)
			return
		}
		log.Debug("window states updated", "count", count)
		cm.mu.Lock()
		fn := cm.onWindowStates
		cm.mu.Unlock()
		if fn != nil {
			fn(cm.cache.Snapshots())
		}

	case wire.ManagementCaptureCallback:
		r := CaptureResult{WindowID: d.Int32(), Succeed: d.Int32() != 0, BufferID: d.Object()}
		if err := d.Err(); err != nil {
			log.Warn("malformed capture_callback event", "err", err)
			return
		}
		log.Debug("capture completed", "window_id", r.WindowID, "succeed", r.Succeed, "buffer", r.BufferID)
		cm.mu.Lock()
		fn := cm.onCapture
		cm.mu.Unlock()
		if fn != nil {
			fn(r)
		}

	case wire.ManagementSplitChange:
		slot := split.Slot{ID: d.Text(), Count: d.Int32()}
		if err := d.Err(); err != nil {
			log.Warn("malformed split_change event", "err", err)
			return
		}
		cm.mu.Lock()
		cm.split, cm.hasSplit = slot, true
		fn := cm.onSplitChange
		cm.mu.Unlock()
		if fn != nil {
			fn(slot)
		}

	default:
		log.Warn("unknown client management event", "opcode", m.Opcode)
	}
}
