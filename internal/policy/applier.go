package policy

import (
	"context"
	"image"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

// Applier is the downward API. Each call runs on the server event loop;
// it waits for the loop to execute it, never for clients to react.
type Applier interface {
	SetFlag(ctx context.Context, surface uint64, flag shellstate.Flags, set bool) error
	SetState(ctx context.Context, surface uint64, mask, value shellstate.Flags) error
	SendGeometry(ctx context.Context, surface uint64, r shellstate.Rect) error
	SendSplitable(ctx context.Context, surface uint64, count int) error
	SetWindowStates(ctx context.Context, list []windowdir.Snapshot) error
	SendWindowCaptionImage(ctx context.Context, windowID int32, buffer uint64, img *image.RGBA) error
	SendWindowCaption(ctx context.Context, windowID int32, buffer uint64, surface uint64) error
	SendSplitChange(ctx context.Context, id string, count int32) error
}
