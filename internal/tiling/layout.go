package tiling

import (
	"fmt"

	"github.com/1broseidon/shellbridge/internal/shellstate"
)

// Rect represents a window position and size
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// SplitCount is the splitable value announced for a tiled region: 1 for
// halves and thirds, 2 for quarters.
func SplitCount(splitType shellstate.SplitType) int32 {
	horizontal := splitType&(shellstate.SplitLeft|shellstate.SplitRight) != 0
	vertical := splitType&(shellstate.SplitTop|shellstate.SplitBottom) != 0
	if horizontal && vertical {
		return 2
	}
	return 1
}

// SplitRegion returns the part of monitor selected by splitType. Left and
// right pick a column, top and bottom pick a row; combining both picks a
// quarter. SplitModeThree divides columns into thirds, where left|right
// selects the middle one. gap insets the region on every side.
func SplitRegion(monitor Rect, splitType shellstate.SplitType, mode shellstate.SplitMode, gap int) (Rect, error) {
	if splitType == 0 || splitType&^(shellstate.SplitLeft|shellstate.SplitRight|shellstate.SplitTop|shellstate.SplitBottom) != 0 {
		return Rect{}, fmt.Errorf("invalid split type %d", int32(splitType))
	}
	if splitType&shellstate.SplitTop != 0 && splitType&shellstate.SplitBottom != 0 {
		return Rect{}, fmt.Errorf("split type %d selects both top and bottom", int32(splitType))
	}

	left := splitType&shellstate.SplitLeft != 0
	right := splitType&shellstate.SplitRight != 0
	region := monitor

	switch mode {
	case shellstate.SplitModeThree:
		third := monitor.Width / 3
		region.Width = third
		switch {
		case left && right:
			region.X = monitor.X + third
		case right:
			region.X = monitor.X + monitor.Width - third
		case !left:
			region.X = monitor.X + third
		}
	case shellstate.SplitModeTwo, shellstate.SplitModeFour, 0:
		if left && right {
			return Rect{}, fmt.Errorf("split type %d selects both left and right", int32(splitType))
		}
		if left || right {
			region.Width = monitor.Width / 2
			if right {
				region.X = monitor.X + monitor.Width/2
			}
		}
	default:
		return Rect{}, fmt.Errorf("invalid split mode %d", int32(mode))
	}

	switch {
	case splitType&shellstate.SplitTop != 0:
		region.Height = monitor.Height / 2
	case splitType&shellstate.SplitBottom != 0:
		region.Y = monitor.Y + monitor.Height/2
		region.Height = monitor.Height / 2
	}

	return ApplyGap(region, gap), nil
}

// ApplyGap shrinks r by gap on every side, never below 1x1.
func ApplyGap(r Rect, gap int) Rect {
	if gap <= 0 {
		return r
	}
	r.X += gap
	r.Y += gap
	r.Width -= 2 * gap
	r.Height -= 2 * gap
	if r.Width < 1 {
		r.Width = 1
	}
	if r.Height < 1 {
		r.Height = 1
	}
	return r
}
