// Package hotkeys grabs global X11 key sequences that quick-tile the
// active window. A key press becomes a split_window notice, so hotkeys and
// protocol clients share one path into the policy.
package hotkeys

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/1broseidon/shellbridge/internal/platform"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"pkt.systems/pslog"
)

// Binding maps one key sequence such as "Mod4-Mod1-Left" to a region.
type Binding struct {
	Keys  string
	Split shellstate.SplitType
}

// ParseBindings turns a region -> key sequence table into bindings.
// Entries with an empty key sequence are disabled.
func ParseBindings(table map[string]string) ([]Binding, error) {
	out := make([]Binding, 0, len(table))
	for region, keys := range table {
		if keys == "" {
			continue
		}
		t, err := shellstate.ParseSplitType(region)
		if err != nil {
			return nil, fmt.Errorf("hotkey %q: %w", region, err)
		}
		out = append(out, Binding{Keys: keys, Split: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keys < out[j].Keys })
	return out, nil
}

type activeWindower interface {
	ActiveWindow() (platform.WindowID, error)
}

// x11Accessor is implemented by backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages the quick-tile key grabs.
type Handler struct {
	backend activeWindower
	sink    policy.Sink
	log     pslog.Logger
	grab    func(keys string, fn func()) error
}

var ignoreModsOnce sync.Once

// NewHandler binds to the X connection of backend. Key presses publish
// notices to sink; the X event loop must be running for them to fire.
func NewHandler(backend platform.Backend, sink policy.Sink, logger pslog.Logger) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, fmt.Errorf("hotkeys need an X11 backend")
	}
	xu := accessor.XUtil()
	root := accessor.RootWindow()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	h := &Handler{backend: backend, sink: sink, log: logger}
	h.grab = func(keys string, fn func()) error {
		return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			fn()
		}).Connect(xu, root, keys, true)
	}
	return h, nil
}

// Register grabs b.Keys.
func (h *Handler) Register(b Binding) error {
	if err := h.grab(b.Keys, func() { h.splitActive(b.Split) }); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", b.Keys, err)
	}
	h.log.Info("hotkey registered", "keys", b.Keys, "region", b.Split.String())
	return nil
}

func (h *Handler) splitActive(t shellstate.SplitType) {
	id, err := h.backend.ActiveWindow()
	if err != nil {
		h.log.Warn("hotkey: active window lookup failed", "err", err)
		return
	}
	if id == 0 {
		h.log.Debug("hotkey: no active window")
		return
	}
	h.log.Debug("hotkey split", "window_id", uint32(id), "region", t.String())
	h.sink.Publish(policy.Notice{
		Kind:      policy.KindSplitWindowRequest,
		ID:        strconv.FormatUint(uint64(id), 10),
		SplitType: t,
	})
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
