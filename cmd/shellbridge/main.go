package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1broseidon/shellbridge/internal/config"
	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := newLogger("")
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("shellbridge command failed")
		return 1
	}
	return 0
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	socket     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "shellbridge",
		Short:         "Window-management protocol bridge between a shell and its clients",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/shellbridge/config.yaml)")
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "protocol socket name or absolute path (overrides socket_name)")

	root.AddCommand(newDaemonCmd(opts))
	root.AddCommand(newPolicyCmd(opts))
	root.AddCommand(newWindowsCmd(opts))
	root.AddCommand(newCaptureCmd(opts))
	root.AddCommand(newSplitCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newTopCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// load reads the config selected by --config and applies --socket.
func (o *globalOptions) load() (*config.LoadResult, error) {
	var res *config.LoadResult
	var err error
	if o.configPath != "" {
		res, err = config.LoadFromPath(o.configPath)
	} else {
		res, err = config.LoadWithSources()
	}
	if err != nil {
		return nil, err
	}
	if o.socket != "" {
		res.Config.SocketName = o.socket
	}
	return res, nil
}

func (o *globalOptions) socketPath() (string, error) {
	res, err := o.load()
	if err != nil {
		return "", err
	}
	return res.Config.SocketPath()
}

// newLogger builds the stderr logger. Environment settings read by
// pslog win over level.
func newLogger(level string) pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, MinLevel: minLevel(level)}),
	)
}

func minLevel(level string) pslog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return pslog.TraceLevel
	case "debug":
		return pslog.DebugLevel
	case "warn":
		return pslog.WarnLevel
	case "error":
		return pslog.ErrorLevel
	default:
		return pslog.InfoLevel
	}
}
