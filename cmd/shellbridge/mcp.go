package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/shellbridge/internal/mcp"
	"pkt.systems/pslog"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	cmd.AddCommand(newMCPServeCmd(opts))
	return cmd
}

func newMCPServeCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	var captureDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdio. Designed to be invoked by MCP clients.

Example:
  claude mcp add shellbridge -- shellbridge mcp serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.socketPath()
			if err != nil {
				return err
			}
			server := mcp.NewServer(mcp.Options{
				SocketPath: path,
				Timeout:    timeout,
				CaptureDir: captureDir,
				Logger:     pslog.Ctx(cmd.Context()).With("component", "mcp"),
			})
			defer server.Close()
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", mcp.DefaultTimeout, "how long each tool call waits for the shell")
	cmd.Flags().StringVar(&captureDir, "capture-dir", "", "directory for saved captures (default $XDG_DATA_HOME/shellbridge/captures)")
	return cmd
}
