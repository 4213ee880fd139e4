package policy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/1broseidon/shellbridge/internal/shm"
	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

// Bridge connects the server to an out-of-process policy. Queued notices
// are forwarded to the most recently connected policy, and every command
// it sends is applied and acknowledged with a Result.
type Bridge struct {
	queue   *Queue
	applier Applier
	log     pslog.Logger

	mu   sync.Mutex
	conn *wire.Conn
}

func NewBridge(queue *Queue, applier Applier, logger pslog.Logger) *Bridge {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bridge{queue: queue, applier: applier, log: logger}
}

// Forward sends queued notices until ctx ends. Notices arriving while no
// policy is connected are discarded.
func (b *Bridge) Forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-b.queue.C():
			b.forward(n)
		}
	}
}

func (b *Bridge) forward(n Notice) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		b.log.Trace("no policy connected, notice discarded", "kind", string(n.Kind))
		return
	}
	m, err := encodeFrame(frameNotice, n)
	if err != nil {
		b.log.Error("policy notice encode failed", "kind", string(n.Kind), "err", err)
		return
	}
	if err := conn.WriteMessage(m); err != nil {
		b.log.Warn("policy notice write failed", "kind", string(n.Kind), "err", err)
	}
}

// Handle serves one policy connection. A new connection replaces the
// previous one.
func (b *Bridge) Handle(ctx context.Context, conn *wire.Conn) {
	b.mu.Lock()
	prev := b.conn
	b.conn = conn
	b.mu.Unlock()
	if prev != nil {
		b.log.Info("policy connection replaced")
		prev.Close()
	}
	b.log.Info("policy connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
		conn.Close()
		b.log.Info("policy disconnected")
	}()

	for {
		m, err := conn.ReadMessage()
		if err != nil {
			if !wire.IsClosed(err) {
				b.log.Warn("policy read failed", "err", err)
			}
			return
		}
		if m.Opcode != frameCommand {
			b.log.Warn("unexpected policy frame", "opcode", m.Opcode)
			wire.CloseFDs(m.FDs)
			continue
		}
		var cmd Command
		if err := decodeFrame(m, &cmd); err != nil {
			b.log.Warn("malformed policy command", "err", err)
			wire.CloseFDs(m.FDs)
			continue
		}

		res := Result{Seq: cmd.Seq}
		if err := b.apply(ctx, cmd, m.FDs); err != nil {
			res.Error = err.Error()
			b.log.Debug("policy command failed", "op", string(cmd.Op), "err", err)
		}
		reply, err := encodeFrame(frameResult, res)
		if err != nil {
			b.log.Error("policy result encode failed", "err", err)
			continue
		}
		if err := conn.WriteMessage(reply); err != nil {
			b.log.Warn("policy result write failed", "err", err)
			return
		}
	}
}

func (b *Bridge) apply(ctx context.Context, cmd Command, fds []int) error {
	if cmd.Op != OpSendCaptionImage {
		wire.CloseFDs(fds)
	}
	switch cmd.Op {
	case OpSetFlag:
		return b.applier.SetFlag(ctx, cmd.Surface, cmd.Flag, cmd.Set)
	case OpSetState:
		return b.applier.SetState(ctx, cmd.Surface, cmd.Mask, cmd.Value)
	case OpSendGeometry:
		return b.applier.SendGeometry(ctx, cmd.Surface, cmd.Geometry)
	case OpSendSplitable:
		return b.applier.SendSplitable(ctx, cmd.Surface, int(cmd.Count))
	case OpSetWindowStates:
		return b.applier.SetWindowStates(ctx, cmd.Windows)
	case OpSendCaptionImage:
		img, err := imageFromFDs(cmd, fds)
		if err != nil {
			// A broken image still completes the capture as failed.
			b.log.Warn("policy capture image unusable", "window_id", cmd.WindowID, "err", err)
		}
		return b.applier.SendWindowCaptionImage(ctx, cmd.WindowID, cmd.Buffer, img)
	case OpSendCaption:
		return b.applier.SendWindowCaption(ctx, cmd.WindowID, cmd.Buffer, cmd.Surface)
	case OpSendSplitChange:
		return b.applier.SendSplitChange(ctx, cmd.ID, cmd.Count)
	default:
		return fmt.Errorf("unknown policy op %q", cmd.Op)
	}
}

func imageFromFDs(cmd Command, fds []int) (*image.RGBA, error) {
	if len(fds) == 0 {
		return nil, nil
	}
	wire.CloseFDs(fds[1:])
	buf, err := shm.FromFD(fds[0], cmd.ImageWidth, cmd.ImageHeight, cmd.ImageWidth*shm.BytesPerPixel, shm.FormatABGR8888)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return buf.Image()
}

// ErrRemoteClosed is returned by Remote calls after the connection ended.
var ErrRemoteClosed = errors.New("policy bridge connection closed")

// Remote is the policy side of a Bridge. It implements Applier by sending
// commands and waiting for their results, and exposes received notices.
type Remote struct {
	conn   *wire.Conn
	log    pslog.Logger
	queue  *Queue
	done   chan struct{}
	closed sync.Once

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan error
}

var _ Applier = (*Remote)(nil)

// DialRemote connects to a bridge socket.
func DialRemote(path string, depth int, logger pslog.Logger) (*Remote, error) {
	conn, err := wire.Dial(path)
	if err != nil {
		return nil, err
	}
	return NewRemote(conn, depth, logger), nil
}

// NewRemote starts reading from an established bridge connection.
func NewRemote(conn *wire.Conn, depth int, logger pslog.Logger) *Remote {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	r := &Remote{
		conn:    conn,
		log:     logger,
		queue:   NewQueue(depth, logger),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan error),
	}
	go r.readLoop()
	return r
}

// Notices delivers notices forwarded by the server.
func (r *Remote) Notices() <-chan Notice {
	return r.queue.C()
}

// Done is closed when the connection ends.
func (r *Remote) Done() <-chan struct{} {
	return r.done
}

func (r *Remote) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}

func (r *Remote) readLoop() {
	defer r.closed.Do(func() { close(r.done) })
	for {
		m, err := r.conn.ReadMessage()
		if err != nil {
			if !wire.IsClosed(err) {
				r.log.Warn("bridge read failed", "err", err)
			}
			return
		}
		wire.CloseFDs(m.FDs)
		switch m.Opcode {
		case frameNotice:
			var n Notice
			if err := decodeFrame(m, &n); err != nil {
				r.log.Warn("malformed notice", "err", err)
				continue
			}
			r.queue.Publish(n)
		case frameResult:
			var res Result
			if err := decodeFrame(m, &res); err != nil {
				r.log.Warn("malformed result", "err", err)
				continue
			}
			r.mu.Lock()
			ch := r.pending[res.Seq]
			delete(r.pending, res.Seq)
			r.mu.Unlock()
			if ch == nil {
				continue
			}
			if res.Error != "" {
				ch <- errors.New(res.Error)
			} else {
				ch <- nil
			}
		default:
			r.log.Warn("unexpected bridge frame", "opcode", m.Opcode)
		}
	}
}

func (r *Remote) call(ctx context.Context, cmd Command, fds ...int) error {
	ch := make(chan error, 1)
	r.mu.Lock()
	r.seq++
	cmd.Seq = r.seq
	r.pending[cmd.Seq] = ch
	r.mu.Unlock()

	forget := func() {
		r.mu.Lock()
		delete(r.pending, cmd.Seq)
		r.mu.Unlock()
	}

	m, err := encodeFrame(frameCommand, cmd, fds...)
	if err != nil {
		forget()
		return err
	}
	if err := r.conn.WriteMessage(m); err != nil {
		forget()
		return fmt.Errorf("failed to send %s: %w", cmd.Op, err)
	}

	select {
	case err := <-ch:
		return err
	case <-r.done:
		forget()
		return ErrRemoteClosed
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}
