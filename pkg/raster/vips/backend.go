// Package vips is raster backend using libvips through bimg.
// Rasters are kept as PNG buffers between operations.
package vips

import (
	"image"
	"image/color"
	"math"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/raster/goimage"
	"github.com/h2non/bimg"
	"github.com/pkg/errors"
)

// ErrForeignRaster is returned when raster wasn't created by vips backend
var ErrForeignRaster = errors.New("raster not created by vips backend")

var imageTypes = map[canvas.Format]bimg.ImageType{
	canvas.JPEG: bimg.JPEG,
	canvas.PNG:  bimg.PNG,
	canvas.GIF:  bimg.GIF,
}

// right angle rotations, counter-clockwise degrees to libvips (clockwise) angles
var rightAngles = map[int]bimg.Angle{
	90:  bimg.D270,
	180: bimg.D180,
	270: bimg.D90,
}

// Raster is PNG encoded image
type Raster struct {
	buf    []byte
	width  int
	height int
}

// Width of raster in px
func (r *Raster) Width() int {
	return r.width
}

// Height of raster in px
func (r *Raster) Height() int {
	return r.height
}

// Buffer returns PNG encoded pixels
func (r *Raster) Buffer() []byte {
	return r.buf
}

// Backend implements canvas.Backend with libvips.
// Operations bimg doesn't expose (flood fill, color key, free angle rotation, blank images)
// are done by pure Go backend on decoded pixels
type Backend struct {
	// Quality of JPEG encoding
	Quality  int
	fallback *goimage.Backend
}

// NewBackend returns vips backend
func NewBackend() *Backend {
	return &Backend{Quality: 75, fallback: goimage.NewBackend()}
}

func newRaster(buf []byte) (*Raster, error) {
	size, err := bimg.NewImage(buf).Size()
	if err != nil {
		return nil, err
	}

	return &Raster{buf: buf, width: size.Width, height: size.Height}, nil
}

func unwrap(r canvas.Raster) (*Raster, error) {
	raster, ok := r.(*Raster)
	if !ok || raster == nil || raster.buf == nil {
		return nil, ErrForeignRaster
	}

	return raster, nil
}

// Decode checks image type and converts image to internal PNG buffer (applying EXIF orientation)
func (b *Backend) Decode(buf []byte, format canvas.Format) (canvas.Raster, error) {
	expected, ok := imageTypes[format]
	if !ok {
		return nil, errors.Wrapf(canvas.ErrUnsupportedFormat, "%s", format)
	}

	if actual := bimg.DetermineImageType(buf); actual != expected {
		return nil, errors.Errorf("expected %s got %s", bimg.ImageTypeName(expected), bimg.ImageTypeName(actual))
	}

	out, err := bimg.NewImage(buf).Process(bimg.Options{Type: bimg.PNG})
	if err != nil {
		return nil, err
	}

	return newRaster(out)
}

// Encode converts raster to format. Alpha is flattened on white for JPEG
func (b *Backend) Encode(r canvas.Raster, format canvas.Format) ([]byte, error) {
	raster, err := unwrap(r)
	if err != nil {
		return nil, err
	}

	t, ok := imageTypes[format]
	if !ok {
		return nil, errors.Wrapf(canvas.ErrUnsupportedFormat, "%s", format)
	}

	opts := bimg.Options{Type: t}
	if format == canvas.JPEG {
		opts.Quality = b.Quality
		opts.Background = bimg.Color{R: 0xff, G: 0xff, B: 0xff}
	}

	return bimg.NewImage(raster.buf).Process(opts)
}

// Allocate creates black raster
func (b *Backend) Allocate(width, height int) (canvas.Raster, error) {
	blank, err := b.fallback.Allocate(width, height)
	if err != nil {
		return nil, err
	}

	return b.fromFallback(blank)
}

// Fill flood fills area of color at (x, y)
func (b *Backend) Fill(r canvas.Raster, x, y int, c color.Color) error {
	return b.withPixels(r, func(px canvas.Raster) error {
		return b.fallback.Fill(px, x, y, c)
	})
}

// SetColorKey makes every pixel of color c transparent
func (b *Backend) SetColorKey(r canvas.Raster, c color.Color) error {
	return b.withPixels(r, func(px canvas.Raster) error {
		return b.fallback.SetColorKey(px, c)
	})
}

// ResampledCopy scales sr of src into dr of dst, dr is clipped to dst.
// When dr covers whole dst its pixels are replaced, alpha included
func (b *Backend) ResampledCopy(dst, src canvas.Raster, dr, sr image.Rectangle) error {
	d, err := unwrap(dst)
	if err != nil {
		return err
	}
	s, err := unwrap(src)
	if err != nil {
		return err
	}

	if dr.Empty() || sr.Empty() {
		return nil
	}

	piece, err := extract(s, sr)
	if err != nil {
		return err
	}

	if dr.Size() != sr.Size() {
		piece, err = bimg.NewImage(piece).Process(bimg.Options{
			Width:  dr.Dx(),
			Height: dr.Dy(),
			Force:  true,
			Type:   bimg.PNG,
		})
		if err != nil {
			return err
		}
	}

	full := image.Rect(0, 0, d.width, d.height)
	if full.In(dr) {
		return replace(d, piece, dr.Size(), full.Sub(dr.Min))
	}

	return b.paste(d, piece, dr, 1)
}

// replace overwrites whole d with area of piece, alpha of piece is kept
func replace(d *Raster, piece []byte, pieceSize image.Point, area image.Rectangle) error {
	var err error
	if area != (image.Rectangle{Max: pieceSize}) {
		piece, err = bimg.NewImage(piece).Extract(area.Min.Y, area.Min.X, area.Dx(), area.Dy())
		if err != nil {
			return err
		}
	}

	d.buf = append([]byte(nil), piece...)
	return nil
}

// AlphaComposite draws sr of src over dst at dp. opacity is clamped to 0-100
func (b *Backend) AlphaComposite(dst, src canvas.Raster, dp image.Point, sr image.Rectangle, opacity int) error {
	d, err := unwrap(dst)
	if err != nil {
		return err
	}
	s, err := unwrap(src)
	if err != nil {
		return err
	}

	if opacity <= 0 || sr.Empty() {
		return nil
	}
	if opacity > 100 {
		opacity = 100
	}

	piece, err := extract(s, sr)
	if err != nil {
		return err
	}

	return b.paste(d, piece, image.Rectangle{Min: dp, Max: dp.Add(sr.Size())}, float32(opacity)/100)
}

// Rotate rotates raster counter-clockwise. Right angles are done by libvips
func (b *Backend) Rotate(r canvas.Raster, angle float64, fill color.Color) (canvas.Raster, error) {
	raster, err := unwrap(r)
	if err != nil {
		return nil, err
	}

	normalized := math.Mod(angle, 360)
	if normalized < 0 {
		normalized += 360
	}

	if normalized == 0 {
		cp := make([]byte, len(raster.buf))
		copy(cp, raster.buf)
		return &Raster{buf: cp, width: raster.width, height: raster.height}, nil
	}

	if normalized == math.Trunc(normalized) {
		if a, ok := rightAngles[int(normalized)]; ok {
			out, err := bimg.NewImage(raster.buf).Process(bimg.Options{Rotate: a, Type: bimg.PNG})
			if err != nil {
				return nil, err
			}
			return newRaster(out)
		}
	}

	px, err := b.toFallback(raster)
	if err != nil {
		return nil, err
	}

	rotated, err := b.fallback.Rotate(px, angle, fill)
	if err != nil {
		return nil, err
	}

	return b.fromFallback(rotated)
}

// Release drops buffer of raster
func (b *Backend) Release(r canvas.Raster) error {
	raster, ok := r.(*Raster)
	if !ok || raster == nil {
		return ErrForeignRaster
	}

	raster.buf = nil
	return nil
}

// paste composites PNG buffer piece on d into area, clipping area to d bounds
func (b *Backend) paste(d *Raster, piece []byte, area image.Rectangle, opacity float32) error {
	visible := area.Intersect(image.Rect(0, 0, d.width, d.height))
	if visible.Empty() {
		return nil
	}

	var err error
	if visible != area {
		piece, err = bimg.NewImage(piece).Extract(visible.Min.Y-area.Min.Y, visible.Min.X-area.Min.X, visible.Dx(), visible.Dy())
		if err != nil {
			return err
		}
	}

	out, err := bimg.NewImage(d.buf).Process(bimg.Options{
		Type: bimg.PNG,
		WatermarkImage: bimg.WatermarkImage{
			Left:    visible.Min.X,
			Top:     visible.Min.Y,
			Buf:     piece,
			Opacity: opacity,
		},
	})
	if err != nil {
		return err
	}

	d.buf = out
	return nil
}

func extract(s *Raster, sr image.Rectangle) ([]byte, error) {
	sr = sr.Intersect(image.Rect(0, 0, s.width, s.height))
	if sr.Empty() {
		return nil, errors.New("source rectangle outside of raster")
	}

	if sr == image.Rect(0, 0, s.width, s.height) {
		return s.buf, nil
	}

	return bimg.NewImage(s.buf).Extract(sr.Min.Y, sr.Min.X, sr.Dx(), sr.Dy())
}

func (b *Backend) toFallback(r *Raster) (canvas.Raster, error) {
	return b.fallback.Decode(r.buf, canvas.PNG)
}

func (b *Backend) fromFallback(px canvas.Raster) (*Raster, error) {
	defer b.fallback.Release(px)
	buf, err := b.fallback.Encode(px, canvas.PNG)
	if err != nil {
		return nil, err
	}

	return &Raster{buf: buf, width: px.Width(), height: px.Height()}, nil
}

// withPixels runs fn on decoded pixels of r and stores result back in r
func (b *Backend) withPixels(r canvas.Raster, fn func(px canvas.Raster) error) error {
	raster, err := unwrap(r)
	if err != nil {
		return err
	}

	px, err := b.toFallback(raster)
	if err != nil {
		return err
	}

	if err = fn(px); err != nil {
		b.fallback.Release(px)
		return err
	}

	out, err := b.fromFallback(px)
	if err != nil {
		return err
	}

	raster.buf = out.buf
	return nil
}
