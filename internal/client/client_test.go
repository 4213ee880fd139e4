package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

func discardLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

// peer plays the server side with raw messages.
type peer struct {
	t    *testing.T
	conn *wire.Conn
}

func newPair(t *testing.T) (*Conn, *peer) {
	t.Helper()
	a, b, err := wire.Pair()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	c := New(a, Options{Logger: discardLogger()})
	t.Cleanup(func() {
		b.Close()
		c.Close()
	})
	return c, &peer{t: t, conn: b}
}

func (p *peer) read() wire.Message {
	p.t.Helper()
	m, err := p.conn.ReadMessage()
	if err != nil {
		p.t.Fatalf("peer read: %v", err)
	}
	wire.CloseFDs(m.FDs)
	return m
}

func (p *peer) send(m wire.Message) {
	p.t.Helper()
	if err := p.conn.WriteMessage(m); err != nil {
		p.t.Fatalf("peer write: %v", err)
	}
}

// answerSync reads requests until a display.sync and answers it, so the
// client's Roundtrip returns after every earlier event.
func (p *peer) answerSync() {
	p.t.Helper()
	for {
		m := p.read()
		if m.Object == wire.DisplayObject && m.Opcode == wire.DisplaySync {
			d := wire.NewDecoder(m)
			id := d.Uint32()
			var enc wire.Encoder
			p.send(enc.Uint32(1).Message(id, wire.CallbackDone))
			return
		}
	}
}

func (p *peer) roundtrip(c *Conn) {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Roundtrip(ctx) }()
	p.answerSync()
	if err := <-errc; err != nil {
		p.t.Fatalf("roundtrip: %v", err)
	}
}

func windowStatesEvent(object uint32, count uint32, data []byte) wire.Message {
	var enc wire.Encoder
	return enc.Uint32(count).Array(data).Message(object, wire.ManagementWindowStates)
}

func TestWindowCache_AllOrNothing(t *testing.T) {
	c, p := newPair(t)
	cm, err := c.BindClientManagement()
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m := p.read(); m.Opcode != wire.DisplayBind {
		t.Fatalf("expected bind, got %s", m)
	}

	var calls int
	var mu sync.Mutex
	cm.OnWindowStates(func([]windowdir.Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	list := []windowdir.Snapshot{
		{PID: 1, WindowID: 10, Name: "one"},
		{PID: 2, WindowID: 20, Name: "two", Minimized: true},
	}
	p.send(windowStatesEvent(cm.ID(), 2, windowdir.Encode(list)))
	p.roundtrip(c)

	// Rejected updates: count mismatch, short buffer, empty buffer.
	p.send(windowStatesEvent(cm.ID(), 3, windowdir.Encode(list)))
	p.send(windowStatesEvent(cm.ID(), 1, windowdir.Encode(list)[:100]))
	p.send(windowStatesEvent(cm.ID(), 0, nil))
	p.roundtrip(c)

	got := cm.GetWindowStates()
	if len(got) != 2 || got[0] != list[0] || got[1] != list[1] {
		t.Fatalf("cache = %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one accepted update, got %d", calls)
	}
}

func TestGetWindowStates_EmptyCacheRequests(t *testing.T) {
	c, p := newPair(t)
	cm, _ := c.BindClientManagement()
	p.read()

	if got := cm.GetWindowStates(); len(got) != 0 {
		t.Fatalf("expected empty cache, got %+v", got)
	}
	m := p.read()
	if m.Object != cm.ID() || m.Opcode != wire.ManagementGetWindowStates {
		t.Fatalf("expected get_window_states, got %s", m)
	}
}

func TestShellSurface_MirrorFollowsEvents(t *testing.T) {
	c, p := newPair(t)
	sh, _ := c.BindShell()
	sf, _ := c.CreateSurface(5)
	ss, _ := sh.GetShellSurface(sf)
	for range 3 {
		p.read()
	}

	var changes []shellstate.Change
	var rects []shellstate.Rect
	var mu sync.Mutex
	ss.OnStateChanged(func(ch shellstate.Change) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})
	ss.OnGeometry(func(r shellstate.Rect) {
		mu.Lock()
		rects = append(rects, r)
		mu.Unlock()
	})

	state := shellstate.FlagActive | shellstate.FlagFourSplit
	for range 2 {
		var enc wire.Encoder
		p.send(enc.Uint32(uint32(state)).Message(ss.ID(), wire.ShellSurfaceStateChanged))
	}
	r := shellstate.Rect{X: -5, Y: 0, Width: 100, Height: 50}
	for range 2 {
		var enc wire.Encoder
		p.send(enc.Int32(r.X).Int32(r.Y).Uint32(uint32(r.Width)).Uint32(uint32(r.Height)).Message(ss.ID(), wire.ShellSurfaceGeometry))
	}
	p.roundtrip(c)

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0].Old != shellstate.FlagAcceptFocus || changes[0].New != state {
		t.Fatalf("changes = %+v", changes)
	}
	if len(rects) != 1 || rects[0] != r {
		t.Fatalf("rects = %+v", rects)
	}
	m := ss.Mirror()
	if !m.Active() || m.AcceptFocus() || m.Splitable() != 2 {
		t.Fatalf("mirror = %s", m.Flags())
	}
}

func TestShellSurface_Requests(t *testing.T) {
	c, p := newPair(t)
	sh, _ := c.BindShell()
	sf, _ := c.CreateSurface(5)
	ss, _ := sh.GetShellSurface(sf)
	for range 3 {
		p.read()
	}

	if err := ss.RequestFlag(shellstate.FlagMinimized, true); err != nil {
		t.Fatalf("RequestFlag: %v", err)
	}
	m := p.read()
	d := wire.NewDecoder(m)
	if mask, value := d.Uint32(), d.Uint32(); m.Opcode != wire.ShellSurfaceSetState || mask != uint32(shellstate.FlagMinimized) || value != mask {
		t.Fatalf("unexpected set_state mask=%d value=%d", mask, value)
	}

	if err := ss.RequestSplitWindow(shellstate.SplitLeft|shellstate.SplitTop, shellstate.SplitModeFour); err != nil {
		t.Fatalf("RequestSplitWindow: %v", err)
	}
	m = p.read()
	d = wire.NewDecoder(m)
	prop := shellstate.Property(d.Uint32())
	v, err := shellstate.DecodeProperty(prop, d.Array())
	if err != nil {
		t.Fatalf("DecodeProperty: %v", err)
	}
	if v.SplitType != shellstate.SplitLeft|shellstate.SplitTop || v.SplitMode != shellstate.SplitModeFour {
		t.Fatalf("unexpected quick tile %+v", v)
	}
}

func TestProtocolErrorsReported(t *testing.T) {
	a, b, err := wire.Pair()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	got := make(chan *wire.ProtocolError, 1)
	c := New(a, Options{Logger: discardLogger(), OnError: func(pe *wire.ProtocolError) { got <- pe }})
	defer c.Close()
	defer b.Close()

	b.WriteMessage(wire.ErrorEvent(&wire.ProtocolError{Object: 4, Code: wire.ErrInvalidProperty, Message: "bad"}))
	select {
	case pe := <-got:
		if pe.Object != 4 || pe.Code != wire.ErrInvalidProperty || pe.Message != "bad" {
			t.Fatalf("unexpected error %+v", pe)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("error not reported")
	}
	if c.LastError() == nil {
		t.Fatal("LastError not recorded")
	}
}

func TestRoundtrip_ClosedConnection(t *testing.T) {
	c, p := newPair(t)
	p.conn.Close()
	<-c.Done()
	if err := c.Roundtrip(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
