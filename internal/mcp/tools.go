package mcp

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

func (s *Server) handleListWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	session, err := s.current()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := session.Windows(ctx)
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	list = filterWindows(list, args.Name)
	s.log.Debug("list_windows", "count", len(list), "filter", args.Name)
	return nil, ListWindowsOutput{Count: len(list), Windows: list}, nil
}

func filterWindows(list []windowdir.Snapshot, name string) []windowdir.Snapshot {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return list
	}
	out := make([]windowdir.Snapshot, 0, len(list))
	for _, w := range list {
		if strings.Contains(strings.ToLower(w.Name), name) {
			out = append(out, w)
		}
	}
	return out
}

func (s *Server) handleCaptureWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args CaptureWindowInput) (*mcpsdk.CallToolResult, CaptureWindowOutput, error) {
	if args.WindowID == 0 {
		return nil, CaptureWindowOutput{}, fmt.Errorf("window_id is required")
	}
	session, err := s.current()
	if err != nil {
		return nil, CaptureWindowOutput{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	img, err := session.Capture(ctx, args.WindowID)
	if err != nil {
		return nil, CaptureWindowOutput{}, err
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return nil, CaptureWindowOutput{}, fmt.Errorf("failed to encode png: %w", err)
	}
	out := CaptureWindowOutput{
		WindowID: args.WindowID,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Bytes:    encoded.Len(),
	}
	if args.Save {
		path, err := SaveCapture(s.captureDir, args.WindowID, encoded.Bytes())
		if err != nil {
			return nil, CaptureWindowOutput{}, err
		}
		out.Path = path
	}
	s.log.Info("capture_window", "window_id", args.WindowID, "width", out.Width, "height", out.Height, "path", out.Path)

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.ImageContent{Data: encoded.Bytes(), MIMEType: "image/png"},
		},
	}, out, nil
}

func (s *Server) handleSplitWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args SplitWindowInput) (*mcpsdk.CallToolResult, SplitWindowOutput, error) {
	if args.WindowID == 0 {
		return nil, SplitWindowOutput{}, fmt.Errorf("window_id is required")
	}
	splitType, err := shellstate.ParseSplitType(args.Region)
	if err != nil {
		return nil, SplitWindowOutput{}, err
	}
	session, err := s.current()
	if err != nil {
		return nil, SplitWindowOutput{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := session.Split(ctx, args.WindowID, splitType); err != nil {
		return nil, SplitWindowOutput{}, err
	}
	s.log.Info("split_window", "window_id", args.WindowID, "region", splitType.String())
	return nil, SplitWindowOutput{WindowID: args.WindowID, Region: splitType.String()}, nil
}
