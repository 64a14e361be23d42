package canvas

import (
	"image"
	"image/color"
)

// Raster is an opaque reference to pixel storage owned by a Backend
type Raster interface {
	Width() int
	Height() int
}

// Backend is the imaging library doing all pixel work for Canvas.
// Rectangles follow golang.org/x/image/draw conventions: destination rectangles may lie
// partially outside of dst and backend must clip them.
type Backend interface {
	// Decode creates raster from encoded image
	Decode(buf []byte, format Format) (Raster, error)
	// Encode serializes raster
	Encode(r Raster, format Format) ([]byte, error)
	// Allocate creates new raster of exact size
	Allocate(width, height int) (Raster, error)
	// Fill flood fills region containing (x, y) with c
	Fill(r Raster, x, y int, c color.Color) error
	// ResampledCopy scales sr of src into dr of dst
	ResampledCopy(dst, src Raster, dr, sr image.Rectangle) error
	// AlphaComposite merges sr of src onto dst at dp with opacity given in percent
	AlphaComposite(dst, src Raster, dp image.Point, sr image.Rectangle, opacity int) error
	// SetColorKey marks c as transparent color of r
	SetColorKey(r Raster, c color.Color) error
	// Rotate returns new raster rotated counter-clockwise by angle degrees, exposed area painted with fill
	Rotate(r Raster, angle float64, fill color.Color) (Raster, error)
	// Release frees pixel storage
	Release(r Raster) error
}

// White is used as rotation fill color and transparency key
var White = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// RGB returns opaque color from components
func RGB(r, g, b uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

func bounds(r Raster) image.Rectangle {
	return image.Rect(0, 0, r.Width(), r.Height())
}
