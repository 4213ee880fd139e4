// Package ipc owns the unix socket listeners of the daemon: the protocol
// socket clients connect to and the policy bridge socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/1broseidon/shellbridge/internal/wire"
	"pkt.systems/pslog"
)

// Handler serves one accepted connection. It owns conn and must close it.
type Handler func(ctx context.Context, conn *wire.Conn)

// Listener accepts framed connections on a unix socket path.
type Listener struct {
	socketPath   string
	listener     *net.UnixListener
	log          pslog.Logger
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// Listen removes a stale socket at path and starts listening. The socket
// is only accessible by the owner.
func Listen(path string, logger pslog.Logger) (*Listener, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket dir: %w", err)
	}

	// Remove existing socket if present
	os.Remove(path)

	ul, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to create socket %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		ul.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return &Listener{socketPath: path, listener: ul, log: logger.With("socket", path)}, nil
}

// Path returns the socket path.
func (l *Listener) Path() string {
	return l.socketPath
}

// Serve accepts connections and runs handler for each one on its own
// goroutine until ctx ends or Close is called. It returns after every
// handler returned.
func (l *Listener) Serve(ctx context.Context, handler Handler) error {
	l.log.Info("listening")
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	err := l.acceptLoop(ctx, handler)
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop(ctx context.Context, handler Handler) error {
	for {
		uc, err := l.listener.AcceptUnix()
		if err != nil {
			if l.closing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.log.Warn("accept error", "err", err)
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			handler(ctx, wire.NewConn(uc))
		}()
	}
}

func (l *Listener) closing() bool {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()
	return l.shuttingDown
}

// Close stops accepting and removes the socket file. Close is idempotent.
func (l *Listener) Close() error {
	l.shutdownMu.Lock()
	if l.shuttingDown {
		l.shutdownMu.Unlock()
		return nil
	}
	l.shuttingDown = true
	l.shutdownMu.Unlock()

	err := l.listener.Close()
	os.Remove(l.socketPath)
	return err
}
