package mcp

import "github.com/1broseidon/shellbridge/internal/windowdir"

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Name string `json:"name,omitempty" jsonschema:"Optional case-insensitive substring filter on the window name"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Count   int                  `json:"count"`
	Windows []windowdir.Snapshot `json:"windows"`
}

// CaptureWindowInput is the input for the capture_window tool.
type CaptureWindowInput struct {
	WindowID int32 `json:"window_id" jsonschema:"required,Window id from list_windows"`
	Save     bool  `json:"save,omitempty" jsonschema:"When true, also write the PNG under the captures directory and return its path"`
}

// CaptureWindowOutput is the output for the capture_window tool. The image
// itself is returned as PNG image content.
type CaptureWindowOutput struct {
	WindowID int32  `json:"window_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
	Path     string `json:"path,omitempty"`
}

// SplitWindowInput is the input for the split_window tool.
type SplitWindowInput struct {
	WindowID int32  `json:"window_id" jsonschema:"required,Window id from list_windows"`
	Region   string `json:"region" jsonschema:"required,Screen region: left, right, top, bottom or a quarter such as right+top"`
}

// SplitWindowOutput is the output for the split_window tool.
type SplitWindowOutput struct {
	WindowID int32  `json:"window_id"`
	Region   string `json:"region"`
}
