// Package mcp exposes the window directory, window capture and split
// requests as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/shellbridge/internal/client"
	"pkt.systems/pslog"
)

const (
	ServerName     = "shellbridge"
	ServerVersion  = "0.1.0"
	DefaultTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// SocketPath is the shellbridge protocol socket.
	SocketPath string
	// Timeout bounds every tool call that waits on the shell.
	Timeout time.Duration
	// CaptureDir receives PNG files for capture_window with save set.
	// Empty selects the default under XDG_DATA_HOME.
	CaptureDir string
	Logger     pslog.Logger
}

// Server is the MCP server. It keeps one protocol session and reconnects
// when the shell went away.
type Server struct {
	mcpServer  *mcpsdk.Server
	log        pslog.Logger
	timeout    time.Duration
	captureDir string
	open       func() (*client.Session, error)

	mu      sync.Mutex
	session *client.Session
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Server{
		log:        logger,
		timeout:    timeout,
		captureDir: opts.CaptureDir,
	}
	s.open = func() (*client.Session, error) {
		return client.Open(opts.SocketPath, client.Options{Logger: logger})
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close drops the protocol session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List the windows the shell currently publishes: pid, window id, name, geometry and the minimized, fullscreen and active flags.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "capture_window",
		Description: "Capture the pixels of one window and return them as a PNG image. The buffer is sized from the window geometry in list_windows.",
	}, s.handleCaptureWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "split_window",
		Description: "Ask the shell to tile a window into a screen region: left, right, top, bottom, or a quarter such as left+top.",
	}, s.handleSplitWindow)
}

// current returns the live session, dialing a new one when there is none
// or the previous connection ended.
func (s *Server) current() (*client.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		select {
		case <-s.session.Conn.Done():
			s.log.Info("shellbridge connection lost, reconnecting")
			s.session = nil
		default:
			return s.session, nil
		}
	}
	session, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("shellbridge is not reachable: %w", err)
	}
	s.session = session
	return session, nil
}
