package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/shellbridge/internal/config"
	"github.com/1broseidon/shellbridge/internal/hotkeys"
	"github.com/1broseidon/shellbridge/internal/ipc"
	"github.com/1broseidon/shellbridge/internal/platform"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/server"
	"pkt.systems/pslog"
)

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the protocol server (foreground)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.load()
			if err != nil {
				return err
			}
			cfg := res.Config
			if mode != "" {
				cfg.Policy.Mode = config.PolicyMode(mode)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger := newLogger(cfg.LogLevel)
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			logger.Info("configuration loaded", "files", res.Files, "policy", string(cfg.Policy.Mode), "max_windows", cfg.Directory.MaxWindows)
			return runDaemon(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&mode, "policy", "", "policy mode: x11, remote or none (overrides policy.mode)")
	return cmd
}

// openBackend connects to the X display for the in-process policy.
var openBackend = platform.NewLinuxBackendFromDisplay

// runDaemon opens everything that can fail before it starts a goroutine, so
// an error return leaves nothing running and no socket behind.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	logger := pslog.Ctx(ctx)
	socketPath, err := cfg.SocketPath()
	if err != nil {
		return err
	}

	queue := policy.NewQueue(cfg.NoticeQueueDepth, logger.With("component", "notices"))
	srv := server.New(server.Options{
		MaxWindows: cfg.Directory.MaxWindows,
		Overflow:   cfg.OverflowPolicy(),
		Notices:    queue,
		Logger:     logger.With("component", "server"),
	})

	var tasks []func(context.Context) error
	switch cfg.Policy.Mode {
	case config.PolicyX11:
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Disconnect()
		if err := registerHotkeys(backend, queue, cfg.Policy.Hotkeys, logger.With("component", "hotkeys")); err != nil {
			return err
		}
		engine := policy.NewEngine(backend, srv, policy.EngineOptions{
			RefreshInterval: cfg.Policy.RefreshInterval,
			Gap:             cfg.Policy.Gap,
		}, logger.With("component", "policy"))
		tasks = append(tasks,
			func(ctx context.Context) error { return engine.Run(ctx, queue.C()) },
			func(ctx context.Context) error {
				stop := context.AfterFunc(ctx, backend.StopEventLoop)
				defer stop()
				backend.EventLoop()
				return nil
			},
		)

	case config.PolicyRemote:
		policyPath, err := cfg.PolicySocketPath()
		if err != nil {
			return err
		}
		pl, err := ipc.Listen(policyPath, logger)
		if err != nil {
			return err
		}
		defer pl.Close()
		bridge := policy.NewBridge(queue, srv, logger.With("component", "bridge"))
		tasks = append(tasks,
			func(ctx context.Context) error {
				bridge.Forward(ctx)
				return nil
			},
			func(ctx context.Context) error { return pl.Serve(ctx, bridge.Handle) },
		)

	case config.PolicyNone:
		tasks = append(tasks, func(ctx context.Context) error {
			queue.Discard(ctx)
			return nil
		})

	default:
		return fmt.Errorf("unknown policy mode %q", cfg.Policy.Mode)
	}

	ln, err := ipc.Listen(socketPath, logger)
	if err != nil {
		return err
	}
	defer ln.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	for _, task := range tasks {
		g.Go(func() error { return task(ctx) })
	}
	g.Go(func() error { return ln.Serve(ctx, srv.ServeConn) })
	logger.Info("shellbridge daemon started", "socket", socketPath, "policy", string(cfg.Policy.Mode))

	err = g.Wait()
	logger.Info("shellbridge daemon stopped", "dropped_notices", queue.Dropped())
	return err
}

// registerHotkeys grabs the configured quick-tile keys. A key that cannot
// be grabbed, usually because another client holds it, is logged and skipped.
func registerHotkeys(backend platform.Backend, sink policy.Sink, table map[string]string, logger pslog.Logger) error {
	bindings, err := hotkeys.ParseBindings(table)
	if err != nil {
		return err
	}
	if len(bindings) == 0 {
		return nil
	}
	h, err := hotkeys.NewHandler(backend, sink, logger)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		if err := h.Register(b); err != nil {
			logger.Warn("hotkey unavailable", "keys", b.Keys, "err", err)
		}
	}
	return nil
}

func newPolicyCmd(opts *globalOptions) *cobra.Command {
	var policySocket string
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Run the X11 policy against a daemon started with --policy remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.load()
			if err != nil {
				return err
			}
			cfg := res.Config
			if policySocket != "" {
				cfg.Policy.SocketName = policySocket
			}
			logger := newLogger(cfg.LogLevel)
			ctx := cmd.Context()

			path, err := cfg.PolicySocketPath()
			if err != nil {
				return err
			}
			remote, err := policy.DialRemote(path, cfg.NoticeQueueDepth, logger.With("component", "remote"))
			if err != nil {
				return fmt.Errorf("failed to connect to policy socket %s: %w", path, err)
			}
			defer remote.Close()

			backend, err := platform.NewLinuxBackendFromDisplay()
			if err != nil {
				return err
			}
			defer backend.Disconnect()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-remote.Done():
					logger.Warn("policy bridge closed")
					cancel()
				case <-ctx.Done():
				}
			}()

			engine := policy.NewEngine(backend, remote, policy.EngineOptions{
				RefreshInterval: cfg.Policy.RefreshInterval,
				Gap:             cfg.Policy.Gap,
			}, logger.With("component", "policy"))
			logger.Info("policy connected", "socket", path)
			return engine.Run(ctx, remote.Notices())
		},
	}
	cmd.Flags().StringVar(&policySocket, "policy-socket", "", "policy socket name or absolute path (overrides policy.socket_name)")
	return cmd
}
