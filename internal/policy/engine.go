package policy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/1broseidon/shellbridge/internal/platform"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/tiling"
	"github.com/1broseidon/shellbridge/internal/windowdir"
	"pkt.systems/pslog"
)

// EngineOptions tunes the window-system policy.
type EngineOptions struct {
	// RefreshInterval republishes the window list and resyncs every
	// surface. Zero disables polling.
	RefreshInterval time.Duration
	// Gap insets split regions on every side.
	Gap int
}

// Engine answers notices from a platform backend. It is driven by a single
// goroutine through Run.
type Engine struct {
	backend  platform.Backend
	applier  Applier
	opts     EngineOptions
	log      pslog.Logger
	surfaces map[uint64]int32
}

func NewEngine(backend platform.Backend, applier Applier, opts EngineOptions, logger pslog.Logger) *Engine {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Engine{
		backend:  backend,
		applier:  applier,
		opts:     opts,
		log:      logger,
		surfaces: make(map[uint64]int32),
	}
}

// Run consumes notices until ctx ends or the channel closes. Failures of
// single notices are logged and never stop the engine.
func (e *Engine) Run(ctx context.Context, notices <-chan Notice) error {
	var tick <-chan time.Time
	if e.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(e.opts.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("initial window refresh failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notices:
			if !ok {
				return nil
			}
			if err := e.Handle(ctx, n); err != nil {
				e.log.Warn("policy notice failed", "kind", string(n.Kind), "surface", n.Surface, "window_id", n.WindowID, "err", err)
			}
		case <-tick:
			if err := e.Refresh(ctx); err != nil {
				e.log.Warn("window refresh failed", "err", err)
			}
		}
	}
}

// Handle applies one notice.
func (e *Engine) Handle(ctx context.Context, n Notice) error {
	e.log.Debug("policy notice", "kind", string(n.Kind), "surface", n.Surface, "window_id", n.WindowID)

	switch n.Kind {
	case KindShellSurfaceCreated:
		e.surfaces[n.Surface] = n.WindowID
		return e.syncSurface(ctx, n.Surface, n.WindowID)
	case KindShellSurfaceDestroyed:
		delete(e.surfaces, n.Surface)
		return nil
	case KindActivationRequested:
		if err := e.backend.Activate(platform.WindowID(n.WindowID)); err != nil {
			return err
		}
		return e.applier.SetFlag(ctx, n.Surface, shellstate.FlagActive, true)
	case KindFlagRequested:
		return e.applyFlag(ctx, n)
	case KindGeometryRequested:
		w, err := e.backend.Window(platform.WindowID(n.WindowID))
		if err != nil {
			return err
		}
		return e.applier.SendGeometry(ctx, n.Surface, rectFromPlatform(w.Bounds))
	case KindNoTitleBarRequested, KindWindowRadiusRequested:
		e.log.Debug("decoration request not supported by backend", "kind", string(n.Kind), "window_id", n.WindowID)
		return nil
	case KindSurfaceSplitRequested:
		return e.split(ctx, n.Surface, n.WindowID, n.SplitType, n.SplitMode)
	case KindSplitWindowRequest:
		id, err := strconv.ParseUint(n.ID, 0, 32)
		if err != nil {
			return fmt.Errorf("split window id %q is not a window id: %w", n.ID, err)
		}
		mode := shellstate.SplitModeTwo
		if tiling.SplitCount(n.SplitType) == 2 {
			mode = shellstate.SplitModeFour
		}
		return e.split(ctx, e.surfaceFor(int32(id)), int32(id), n.SplitType, mode)
	case KindWindowStatesRequest:
		return e.Refresh(ctx)
	case KindCaptureRequest:
		img, err := e.backend.Capture(platform.WindowID(n.WindowID))
		if err != nil {
			e.log.Warn("window capture failed", "window_id", n.WindowID, "err", err)
			img = nil
		}
		return e.applier.SendWindowCaptionImage(ctx, n.WindowID, n.Buffer, img)
	default:
		return fmt.Errorf("unknown notice kind %q", n.Kind)
	}
}

func (e *Engine) applyFlag(ctx context.Context, n Notice) error {
	id := platform.WindowID(n.WindowID)
	var err error
	switch n.Flag {
	case shellstate.FlagActive:
		if !n.Value {
			return nil
		}
		err = e.backend.Activate(id)
	case shellstate.FlagMinimized:
		if n.Value {
			err = e.backend.Minimize(id)
		} else {
			err = e.backend.Activate(id)
		}
	case shellstate.FlagMaximized:
		err = e.backend.SetState(id, platform.StateMaximized, n.Value)
	case shellstate.FlagFullscreen:
		err = e.backend.SetState(id, platform.StateFullscreen, n.Value)
	case shellstate.FlagKeepAbove:
		err = e.backend.SetState(id, platform.StateKeepAbove, n.Value)
	case shellstate.FlagKeepBelow:
		err = e.backend.SetState(id, platform.StateKeepBelow, n.Value)
	case shellstate.FlagOnAllDesktops:
		err = e.backend.SetState(id, platform.StateOnAllDesktops, n.Value)
	default:
		e.log.Debug("flag is not controllable", "flag", n.Flag.String(), "window_id", n.WindowID)
		return nil
	}
	if err != nil {
		return err
	}
	return e.applier.SetFlag(ctx, n.Surface, n.Flag, n.Value)
}

// split tiles a window into the region chosen by splitType and announces
// the change. surface 0 means the window has no known shell surface.
func (e *Engine) split(ctx context.Context, surface uint64, windowID int32, splitType shellstate.SplitType, mode shellstate.SplitMode) error {
	id := platform.WindowID(windowID)
	display, err := e.backend.DisplayFor(id)
	if err != nil {
		return err
	}
	region, err := tiling.SplitRegion(rectToTiling(display.Usable), splitType, mode, e.opts.Gap)
	if err != nil {
		return err
	}
	bounds := platform.Rect{X: region.X, Y: region.Y, Width: region.Width, Height: region.Height}
	if err := e.backend.MoveResize(id, bounds); err != nil {
		return err
	}
	if surface != 0 {
		if err := e.applier.SendGeometry(ctx, surface, rectFromPlatform(bounds)); err != nil {
			return err
		}
	}
	return e.applier.SendSplitChange(ctx, strconv.FormatUint(uint64(uint32(windowID)), 10), tiling.SplitCount(splitType))
}

func (e *Engine) surfaceFor(windowID int32) uint64 {
	for surface, id := range e.surfaces {
		if id == windowID {
			return surface
		}
	}
	return 0
}

func (e *Engine) syncSurface(ctx context.Context, surface uint64, windowID int32) error {
	w, err := e.backend.Window(platform.WindowID(windowID))
	if err != nil {
		return err
	}
	if err := e.applier.SetState(ctx, surface, shellstate.BooleanFlags, FlagsFromWindow(w)); err != nil {
		return err
	}
	if err := e.applier.SendGeometry(ctx, surface, rectFromPlatform(w.Bounds)); err != nil {
		return err
	}
	splitable := 0
	if w.Movable && w.Resizable {
		splitable = 2
	}
	return e.applier.SendSplitable(ctx, surface, splitable)
}

// Refresh publishes the current window list and resyncs known surfaces.
func (e *Engine) Refresh(ctx context.Context) error {
	windows, err := e.backend.Windows()
	if err != nil {
		return err
	}
	if err := e.applier.SetWindowStates(ctx, Snapshots(windows)); err != nil {
		return err
	}
	for surface, windowID := range e.surfaces {
		if err := e.syncSurface(ctx, surface, windowID); err != nil {
			e.log.Debug("surface resync failed", "surface", surface, "window_id", windowID, "err", err)
		}
	}
	return nil
}

// Snapshots converts backend windows into directory records.
func Snapshots(windows []platform.Window) []windowdir.Snapshot {
	out := make([]windowdir.Snapshot, 0, len(windows))
	for _, w := range windows {
		out = append(out, windowdir.Snapshot{
			PID:        int32(w.PID),
			WindowID:   int32(w.ID),
			Name:       w.Title,
			Geometry:   rectFromPlatform(w.Bounds),
			Minimized:  w.Minimized,
			Fullscreen: w.Fullscreen,
			Active:     w.Active,
		})
	}
	return out
}

// FlagsFromWindow maps window manager state onto shell flags. Split
// flags are not included.
func FlagsFromWindow(w platform.Window) shellstate.Flags {
	var f shellstate.Flags
	set := func(flag shellstate.Flags, on bool) {
		if on {
			f |= flag
		}
	}
	set(shellstate.FlagActive, w.Active)
	set(shellstate.FlagMinimized, w.Minimized)
	set(shellstate.FlagMaximized, w.Maximized)
	set(shellstate.FlagFullscreen, w.Fullscreen)
	set(shellstate.FlagKeepAbove, w.KeepAbove)
	set(shellstate.FlagKeepBelow, w.KeepBelow)
	set(shellstate.FlagOnAllDesktops, w.OnAllDesktops)
	set(shellstate.FlagCloseable, w.Closeable)
	set(shellstate.FlagMinimizeable, w.Minimizeable)
	set(shellstate.FlagMaximizeable, w.Maximizeable)
	set(shellstate.FlagFullscreenable, w.Fullscreenable)
	set(shellstate.FlagMovable, w.Movable)
	set(shellstate.FlagResizable, w.Resizable)
	set(shellstate.FlagAcceptFocus, true)
	set(shellstate.FlagModal, w.Modal)
	return f
}

func rectFromPlatform(r platform.Rect) shellstate.Rect {
	return shellstate.Rect{X: int32(r.X), Y: int32(r.Y), Width: int32(r.Width), Height: int32(r.Height)}
}

func rectToTiling(r platform.Rect) tiling.Rect {
	return tiling.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
