// Package policy is the boundary between the protocol server and the
// shell policy that decides what windows do.
//
// Two independent flows cross it. Notices travel upward from the server
// into a bounded Queue. Apply calls travel downward through Applier and are
// executed on the server event loop. An Engine consumes notices and drives
// an Applier from a window-system backend; a Bridge carries both flows to
// an out-of-process policy as CBOR.
package policy

import (
	"github.com/1broseidon/shellbridge/internal/shellstate"
)

// Kind identifies an upward notice.
type Kind string

const (
	KindShellSurfaceCreated   Kind = "shell_surface_created"
	KindShellSurfaceDestroyed Kind = "shell_surface_destroyed"
	KindActivationRequested   Kind = "activation_requested"
	KindFlagRequested         Kind = "flag_requested"
	KindGeometryRequested     Kind = "geometry_requested"
	KindNoTitleBarRequested   Kind = "no_titlebar_requested"
	KindWindowRadiusRequested Kind = "window_radius_requested"
	KindSurfaceSplitRequested Kind = "surface_split_requested"
	KindWindowStatesRequest   Kind = "window_states_request"
	KindCaptureRequest        Kind = "capture_window_image_request"
	KindSplitWindowRequest    Kind = "split_window_request"
)

// Notice is one upward event. Surface is the server handle of the shell
// surface and WindowID the window it was created for; the remaining fields
// are set according to Kind.
type Notice struct {
	Kind       Kind                 `cbor:"kind" json:"kind"`
	Surface    uint64               `cbor:"surface,omitempty" json:"surface,omitempty"`
	WindowID   int32                `cbor:"window_id,omitempty" json:"window_id,omitempty"`
	Flag       shellstate.Flags     `cbor:"flag,omitempty" json:"flag,omitempty"`
	Value      bool                 `cbor:"value,omitempty" json:"value,omitempty"`
	NoTitleBar int32                `cbor:"no_titlebar,omitempty" json:"no_titlebar,omitempty"`
	RadiusX    float32              `cbor:"radius_x,omitempty" json:"radius_x,omitempty"`
	RadiusY    float32              `cbor:"radius_y,omitempty" json:"radius_y,omitempty"`
	SplitType  shellstate.SplitType `cbor:"split_type,omitempty" json:"split_type,omitempty"`
	SplitMode  shellstate.SplitMode `cbor:"split_mode,omitempty" json:"split_mode,omitempty"`
	Buffer     uint64               `cbor:"buffer,omitempty" json:"buffer,omitempty"`
	ID         string               `cbor:"id,omitempty" json:"id,omitempty"`
}

// Sink receives upward notices. Publish must not block.
type Sink interface {
	Publish(n Notice)
}
