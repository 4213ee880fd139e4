// Package split tracks tiling intents. One global slot remembers the most
// recent split change; per-surface split capability rides on the shell
// surface state flags.
package split

import (
	"context"
	"fmt"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"pkt.systems/pslog"
)

// Slot is the last announced split change.
type Slot struct {
	ID    string `json:"id"`
	Count int32  `json:"count"`
}

// Relay receives split requests for the policy and changes for clients.
type Relay interface {
	SplitWindowRequested(id string, splitType shellstate.SplitType)
	SurfaceSplitRequested(surface uint64, splitType shellstate.SplitType, mode shellstate.SplitMode)
	SplitChanged(slot Slot)
}

// Negotiator is owned by the server event loop.
type Negotiator struct {
	relay Relay
	log   pslog.Logger
	slot  Slot
	set   bool
}

func NewNegotiator(relay Relay, logger pslog.Logger) *Negotiator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Negotiator{relay: relay, log: logger}
}

// RequestSplitWindow relays a client split_window request.
func (n *Negotiator) RequestSplitWindow(id string, splitType shellstate.SplitType) {
	n.log.Debug("split window requested", "id", id, "split_type", int32(splitType))
	n.relay.SplitWindowRequested(id, splitType)
}

// RequestSurfaceSplit relays a quick-tile property set on a shell surface.
func (n *Negotiator) RequestSurfaceSplit(surface uint64, splitType shellstate.SplitType, mode shellstate.SplitMode) {
	n.log.Debug("surface split requested", "surface", surface, "split_type", int32(splitType), "mode", int32(mode))
	n.relay.SurfaceSplitRequested(surface, splitType, mode)
}

// SendSplitChange stores and broadcasts the change. A count of zero or
// less is neither stored nor broadcast. It reports whether a broadcast
// happened.
func (n *Negotiator) SendSplitChange(id string, count int32) bool {
	if count <= 0 {
		n.log.Debug("split change ignored", "id", id, "count", count)
		return false
	}
	n.slot = Slot{ID: id, Count: count}
	n.set = true
	n.relay.SplitChanged(n.slot)
	return true
}

// Current returns the stored slot, if any change was ever accepted.
func (n *Negotiator) Current() (Slot, bool) {
	return n.slot, n.set
}

// SendSplitable selects exactly one split flag on state for count 0, 1
// or 2 through a single masked set. ok reports whether the bitmask
// changed.
func SendSplitable(state *shellstate.State, count int) (shellstate.Change, bool, error) {
	if count < 0 || count > 2 {
		return shellstate.Change{}, false, fmt.Errorf("invalid splitable count %d (want 0, 1 or 2)", count)
	}
	return state.SetSplit(shellstate.Split(count))
}
