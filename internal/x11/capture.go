package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
)

// CaptureWindow reads the pixels of a mapped window with GetImage. Only
// 24 and 32 bit TrueColor visuals with 32 bits per pixel in LSB-first
// order are supported, which covers every common X server.
func (c *Connection) CaptureWindow(windowID xproto.Window) (*image.RGBA, error) {
	xc := c.XUtil.Conn()
	geom, err := xproto.GetGeometry(xc, xproto.Drawable(windowID)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get geometry of window %d: %w", windowID, err)
	}
	if geom.Width == 0 || geom.Height == 0 {
		return nil, fmt.Errorf("window %d has no area", windowID)
	}
	if geom.Depth != 24 && geom.Depth != 32 {
		return nil, fmt.Errorf("unsupported window depth %d", geom.Depth)
	}

	reply, err := xproto.GetImage(xc, xproto.ImageFormatZPixmap, xproto.Drawable(windowID),
		0, 0, geom.Width, geom.Height, 0xFFFFFFFF).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read window %d image: %w", windowID, err)
	}

	w, h := int(geom.Width), int(geom.Height)
	if len(reply.Data) < w*h*4 {
		return nil, fmt.Errorf("window %d image holds %d bytes, need %d", windowID, len(reply.Data), w*h*4)
	}
	return bgrxToRGBA(reply.Data, w, h, geom.Depth == 32), nil
}

// bgrxToRGBA converts LSB-first 32bpp pixels. Depth 24 has no alpha
// channel, so alpha is forced opaque.
func bgrxToRGBA(src []byte, w, h int, hasAlpha bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		p := src[i*4 : i*4+4]
		d := img.Pix[i*4 : i*4+4]
		d[0], d[1], d[2] = p[2], p[1], p[0]
		if hasAlpha {
			d[3] = p[3]
		} else {
			d[3] = 0xFF
		}
	}
	return img
}
