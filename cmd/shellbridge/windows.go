package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/shellbridge/internal/client"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/split"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"pkt.systems/pslog"
)

const defaultWait = 5 * time.Second

func openSession(ctx context.Context, opts *globalOptions) (*client.Session, error) {
	path, err := opts.socketPath()
	if err != nil {
		return nil, err
	}
	return client.Open(path, client.Options{Logger: pslog.Ctx(ctx)})
}

// wantJSON picks JSON when forced or when stdout is not a terminal.
func wantJSON(force bool) bool {
	return force || !term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeWindowTable(w io.Writer, list []windowdir.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tPID\tGEOMETRY\tSTATE\tNAME")
	for _, s := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", s.WindowID, s.PID, s.Geometry, windowState(s), s.Name)
	}
	return tw.Flush()
}

func windowState(s windowdir.Snapshot) string {
	if names := s.StateNames(); len(names) > 0 {
		return strings.Join(names, ",")
	}
	return "-"
}

func parseWindowID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return int32(id), nil
}

func newWindowsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List the window directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			list, err := s.Windows(ctx)
			if err != nil {
				return err
			}
			if wantJSON(asJSON) {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return writeWindowTable(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON even on a terminal")
	cmd.Flags().DurationVar(&wait, "timeout", defaultWait, "how long to wait for the window list")
	return cmd
}

func newCaptureCmd(opts *globalOptions) *cobra.Command {
	var output string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "capture <window-id>",
		Short: "Capture a window into a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			windowID, err := parseWindowID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			img, err := s.Capture(ctx, windowID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				if term.IsTerminal(int(os.Stdout.Fd())) {
					return fmt.Errorf("refusing to write PNG to a terminal, use --output")
				}
				return png.Encode(cmd.OutOrStdout(), img)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return fmt.Errorf("failed to encode png: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("window captured", "window_id", windowID, "path", output, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file to write (default stdout)")
	cmd.Flags().DurationVar(&wait, "timeout", defaultWait, "how long to wait for the capture")
	return cmd
}

// splitRegions are the choices offered when split runs without a region.
var splitRegions = []shellstate.SplitType{
	shellstate.SplitLeft,
	shellstate.SplitRight,
	shellstate.SplitTop,
	shellstate.SplitBottom,
	shellstate.SplitLeft | shellstate.SplitTop,
	shellstate.SplitRight | shellstate.SplitTop,
	shellstate.SplitLeft | shellstate.SplitBottom,
	shellstate.SplitRight | shellstate.SplitBottom,
}

func promptRegion(ctx context.Context) (shellstate.SplitType, error) {
	options := make([]huh.Option[shellstate.SplitType], 0, len(splitRegions))
	for _, t := range splitRegions {
		options = append(options, huh.NewOption(t.String(), t))
	}
	choice := shellstate.SplitLeft
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[shellstate.SplitType]().
			Title("Region").
			Description("Where to tile the window").
			Options(options...).
			Value(&choice),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return 0, err
	}
	return choice, nil
}

func newSplitCmd(opts *globalOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "split <window-id> [region]",
		Short: "Tile a window into left, right, top, bottom or a quarter such as left+top",
		Long: "Tile a window into left, right, top, bottom or a quarter such as left+top.\n" +
			"Without a region, split asks for one when stdin is a terminal.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			windowID, err := parseWindowID(args[0])
			if err != nil {
				return err
			}
			var splitType shellstate.SplitType
			switch {
			case len(args) == 2:
				splitType, err = shellstate.ParseSplitType(args[1])
			case term.IsTerminal(int(os.Stdin.Fd())):
				splitType, err = promptRegion(cmd.Context())
			default:
				err = fmt.Errorf("region is required when stdin is not a terminal")
			}
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			return s.Split(ctx, windowID, splitType)
		},
	}
	cmd.Flags().DurationVar(&wait, "timeout", defaultWait, "how long to wait for the server")
	return cmd
}

// watchEvent is one line of watch output.
type watchEvent struct {
	Event   string                `json:"event"`
	Windows []windowdir.Snapshot  `json:"windows,omitempty"`
	Capture *client.CaptureResult `json:"capture,omitempty"`
	Split   *split.Slot           `json:"split,omitempty"`
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream window list, capture and split events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.socketPath()
			if err != nil {
				return err
			}
			conn, err := client.Dial(path, client.Options{Logger: pslog.Ctx(cmd.Context())})
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", path, err)
			}
			defer conn.Close()
			cm, err := conn.BindClientManagement()
			if err != nil {
				return err
			}

			events := make(chan watchEvent, 64)
			emit := func(ev watchEvent) {
				select {
				case events <- ev:
				default:
					pslog.Ctx(cmd.Context()).Warn("watch output is behind, event dropped", "event", ev.Event)
				}
			}
			cm.OnWindowStates(func(list []windowdir.Snapshot) {
				emit(watchEvent{Event: "window_states", Windows: list})
			})
			cm.OnCapture(func(r client.CaptureResult) {
				emit(watchEvent{Event: "capture_callback", Capture: &r})
			})
			cm.OnSplitChange(func(slot split.Slot) {
				emit(watchEvent{Event: "split_change", Split: &slot})
			})
			if err := cm.RequestWindowStates(); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-conn.Done():
					return client.ErrClosed
				case ev := <-events:
					if err := enc.Encode(ev); err != nil {
						return err
					}
				}
			}
		},
	}
}
