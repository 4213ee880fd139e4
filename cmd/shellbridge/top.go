package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/shellbridge/internal/mcp"
	"github.com/1broseidon/shellbridge/internal/tui"
)

func newTopCmd(opts *globalOptions) *cobra.Command {
	var (
		wait       time.Duration
		refresh    time.Duration
		captureDir string
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Browse windows interactively: tile, capture and filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("top needs a terminal, use windows --json instead")
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			return tui.Run(cmd.Context(), s, tui.Options{
				Timeout: wait,
				Refresh: refresh,
				Save: func(windowID int32, img *image.RGBA) (string, error) {
					var buf bytes.Buffer
					if err := png.Encode(&buf, img); err != nil {
						return "", fmt.Errorf("failed to encode png: %w", err)
					}
					return mcp.SaveCapture(captureDir, windowID, buf.Bytes())
				},
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "timeout", tui.DefaultTimeout, "per-request timeout")
	cmd.Flags().DurationVar(&refresh, "refresh", tui.DefaultRefresh, "window list refresh interval")
	cmd.Flags().StringVar(&captureDir, "capture-dir", "", "where captures are saved (default $XDG_DATA_HOME/shellbridge/captures)")
	return cmd
}
