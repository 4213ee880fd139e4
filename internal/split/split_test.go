package split

import (
	"io"
	"testing"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"pkt.systems/pslog"
)

type recordingRelay struct {
	windowRequests  []string
	surfaceRequests []uint64
	changes         []Slot
}

func (r *recordingRelay) SplitWindowRequested(id string, _ shellstate.SplitType) {
	r.windowRequests = append(r.windowRequests, id)
}

func (r *recordingRelay) SurfaceSplitRequested(surface uint64, _ shellstate.SplitType, _ shellstate.SplitMode) {
	r.surfaceRequests = append(r.surfaceRequests, surface)
}

func (r *recordingRelay) SplitChanged(slot Slot) {
	r.changes = append(r.changes, slot)
}

func newTestNegotiator() (*Negotiator, *recordingRelay) {
	relay := &recordingRelay{}
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	return NewNegotiator(relay, logger), relay
}

func TestSendSplitChange_ZeroIsIgnored(t *testing.T) {
	n, relay := newTestNegotiator()

	if n.SendSplitChange("A", 0) {
		t.Fatalf("count 0 must not broadcast")
	}
	if _, ok := n.Current(); ok {
		t.Fatalf("count 0 must not be stored")
	}
	if !n.SendSplitChange("B", 2) {
		t.Fatalf("count 2 must broadcast")
	}
	if len(relay.changes) != 1 || relay.changes[0] != (Slot{ID: "B", Count: 2}) {
		t.Fatalf("unexpected changes %+v", relay.changes)
	}

	n.SendSplitChange("C", 0)
	if slot, _ := n.Current(); slot.ID != "B" {
		t.Fatalf("zero change replaced the slot: %+v", slot)
	}
}

func TestSendSplitChange_LastWriterWins(t *testing.T) {
	n, relay := newTestNegotiator()
	n.SendSplitChange("one", 1)
	n.SendSplitChange("two", 2)

	slot, ok := n.Current()
	if !ok || slot.ID != "two" || slot.Count != 2 {
		t.Fatalf("unexpected slot %+v", slot)
	}
	if len(relay.changes) != 2 {
		t.Fatalf("expected two broadcasts, got %d", len(relay.changes))
	}
}

func TestRequestsAreRelayed(t *testing.T) {
	n, relay := newTestNegotiator()
	n.RequestSplitWindow("1234", shellstate.SplitLeft)
	n.RequestSurfaceSplit(8, shellstate.SplitRight|shellstate.SplitTop, shellstate.SplitModeFour)

	if len(relay.windowRequests) != 1 || relay.windowRequests[0] != "1234" {
		t.Fatalf("unexpected window requests %v", relay.windowRequests)
	}
	if len(relay.surfaceRequests) != 1 || relay.surfaceRequests[0] != 8 {
		t.Fatalf("unexpected surface requests %v", relay.surfaceRequests)
	}
}

func TestSendSplitable(t *testing.T) {
	state := shellstate.NewState(shellstate.FlagAcceptFocus)

	tests := []struct {
		count int
		want  shellstate.Flags
	}{
		{1, shellstate.FlagTwoSplit},
		{2, shellstate.FlagFourSplit},
		{0, shellstate.FlagNoSplit},
	}
	for _, tt := range tests {
		change, ok, err := SendSplitable(state, tt.count)
		if err != nil || !ok {
			t.Fatalf("count %d: ok=%v err=%v", tt.count, ok, err)
		}
		if change.New&shellstate.SplitFlags != tt.want {
			t.Fatalf("count %d: split bits %s, want %s", tt.count, change.New&shellstate.SplitFlags, tt.want)
		}
		if !change.New.Has(shellstate.FlagAcceptFocus) {
			t.Fatalf("count %d cleared an unrelated flag", tt.count)
		}
	}

	if _, ok, _ := SendSplitable(state, 0); ok {
		t.Fatalf("repeating the same count must not change state")
	}
	if _, _, err := SendSplitable(state, 3); err == nil {
		t.Fatalf("expected error for count 3")
	}
}
