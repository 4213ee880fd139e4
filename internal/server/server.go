// Package server is the compositor half of the shell protocol. A single
// event loop goroutine owns every object; connection readers only decode
// frames and post them to the loop, and policy calls are posted the same
// way.
package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/shellbridge/internal/capture"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/split"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

// ErrStopped is returned by calls posted after the event loop ended.
var ErrStopped = errors.New("server event loop stopped")

// Options configures a Server.
type Options struct {
	// MaxWindows caps the window directory. Zero uses
	// windowdir.DefaultCapacity.
	MaxWindows int
	// Overflow decides what happens to window lists above MaxWindows.
	Overflow windowdir.OverflowPolicy
	// Notices receives upward notices. Nil discards them.
	Notices policy.Sink
	Logger  pslog.Logger
}

// Server owns the protocol state of every connected client.
type Server struct {
	log  pslog.Logger
	sink policy.Sink

	work     chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	// Owned by the event loop.
	dir           *windowdir.Directory
	captures      *capture.Coordinator
	splits        *split.Negotiator
	clients       map[*client]struct{}
	management    []*management
	shellSurfaces map[uint64]*shellSurface
	buffers       map[uint64]*buffer
	nextHandle    uint64
	serial        uint32

	nextClient atomic.Uint64
}

var _ policy.Applier = (*Server)(nil)

type discardSink struct{}

func (discardSink) Publish(policy.Notice) {}

// New creates a server. Call Run before serving connections.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	sink := opts.Notices
	if sink == nil {
		sink = discardSink{}
	}
	overflow := opts.Overflow
	if overflow == "" {
		overflow = windowdir.OverflowTruncate
	}

	s := &Server{
		log:           logger,
		sink:          sink,
		work:          make(chan func(), 64),
		stopped:       make(chan struct{}),
		dir:           windowdir.NewDirectory(opts.MaxWindows, overflow),
		clients:       make(map[*client]struct{}),
		shellSurfaces: make(map[uint64]*shellSurface),
		buffers:       make(map[uint64]*buffer),
	}
	s.captures = capture.NewCoordinator(s, logger.With("component", "capture"))
	s.splits = split.NewNegotiator(s, logger.With("component", "split"))
	return s
}

// Run executes posted work until ctx ends. Every client is disconnected
// when Run returns.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("event loop started", "max_windows", s.dir.Capacity(), "overflow", string(s.dir.Policy()))
	defer func() {
		s.stopOnce.Do(func() { close(s.stopped) })
		for c := range s.clients {
			c.teardown()
		}
		s.log.Info("event loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.work:
			fn()
		}
	}
}

// post queues fn on the loop without waiting for it to run.
func (s *Server) post(ctx context.Context, fn func()) error {
	select {
	case s.work <- fn:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the event loop and waits until it finished.
func (s *Server) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := s.post(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		// fn may have been the last thing the loop ran.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until all previously posted work has run.
func (s *Server) Sync(ctx context.Context) error {
	return s.Do(ctx, func() {})
}

// ServeConn serves one client connection until it closes or ctx ends. It
// has the shape of an ipc.Handler.
func (s *Server) ServeConn(ctx context.Context, conn *wire.Conn) {
	c := newClient(s, conn)
	if err := s.post(ctx, func() { s.addClient(c) }); err != nil {
		conn.Close()
		return
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		m, err := conn.ReadMessage()
		if err != nil {
			if !wire.IsClosed(err) {
				c.log.Warn("client read failed", "err", err)
			}
			break
		}
		if err := s.post(ctx, func() { c.dispatch(m) }); err != nil {
			wire.CloseFDs(m.FDs)
			break
		}
	}

	// The loop may already be gone; teardown then happened in Run.
	if err := s.post(context.Background(), c.teardown); err != nil {
		conn.Close()
	}
}

func (s *Server) addClient(c *client) {
	s.clients[c] = struct{}{}
	go c.writeLoop()
	c.log.Info("client connected")
}

func (s *Server) allocHandle() uint64 {
	s.nextHandle++
	return s.nextHandle
}

func (s *Server) publish(n policy.Notice) {
	s.log.Debug("policy notice", "kind", string(n.Kind), "surface", n.Surface, "window_id", n.WindowID)
	s.sink.Publish(n)
}
