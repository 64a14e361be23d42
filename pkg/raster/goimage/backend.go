// Package goimage is pure Go raster backend built on disintegration/imaging and golang.org/x/image/draw
package goimage

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ErrForeignRaster is returned when raster wasn't created by this backend
var ErrForeignRaster = errors.New("raster not created by goimage backend")

// ErrReleased is returned when operating on released raster
var ErrReleased = errors.New("raster released")

// Raster holds decoded pixels
type Raster struct {
	img *image.NRGBA
}

// Width of raster in px
func (r *Raster) Width() int {
	if r.img == nil {
		return 0
	}
	return r.img.Bounds().Dx()
}

// Height of raster in px
func (r *Raster) Height() int {
	if r.img == nil {
		return 0
	}
	return r.img.Bounds().Dy()
}

// Image returns pixels of raster
func (r *Raster) Image() *image.NRGBA {
	return r.img
}

// Backend implements canvas.Backend in pure Go
type Backend struct {
	// Interpolator used for scaling in ResampledCopy
	Interpolator draw.Interpolator
	// Quality of JPEG encoding (1-100)
	Quality int
	// Background is color used for new rasters
	Background color.NRGBA
}

// NewBackend returns backend with Catmull-Rom scaling, JPEG quality 75 and black rasters (like gd truecolor images)
func NewBackend() *Backend {
	return &Backend{
		Interpolator: draw.CatmullRom,
		Quality:      75,
		Background:   color.NRGBA{A: 0xff},
	}
}

func unwrap(r canvas.Raster) (*Raster, error) {
	raster, ok := r.(*Raster)
	if !ok || raster == nil {
		return nil, ErrForeignRaster
	}

	if raster.img == nil {
		return nil, ErrReleased
	}

	return raster, nil
}

// Decode decodes image. Encoded format has to match requested format
func (b *Backend) Decode(buf []byte, format canvas.Format) (canvas.Raster, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}

	if name != format.String() {
		return nil, errors.Errorf("expected %s got %s", format, name)
	}

	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	return &Raster{img: imaging.Clone(img)}, nil
}

// Encode encodes raster. Transparent pixels of JPEG output are flattened on white
func (b *Backend) Encode(r canvas.Raster, format canvas.Format) ([]byte, error) {
	raster, err := unwrap(r)
	if err != nil {
		return nil, err
	}

	var (
		f   imaging.Format
		img image.Image = raster.img
	)
	switch format {
	case canvas.JPEG:
		f = imaging.JPEG
		img = imaging.Overlay(imaging.New(raster.Width(), raster.Height(), canvas.White), raster.img, image.Point{}, 1.0)
	case canvas.PNG:
		f = imaging.PNG
	case canvas.GIF:
		return encodeGIF(raster.img)
	default:
		return nil, errors.Wrapf(canvas.ErrUnsupportedFormat, "%s", format)
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, f, imaging.JPEGQuality(b.quality())); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// gifPalette is web safe palette with transparent color at the end
var gifPalette = append(append(color.Palette{}, palette.WebSafe...), color.Transparent)

// encodeGIF keeps fully transparent pixels transparent, imaging quantizes them to opaque Plan9 colors
func encodeGIF(img *image.NRGBA) ([]byte, error) {
	bounds := img.Bounds()
	pm := image.NewPaletted(bounds, gifPalette)
	draw.FloydSteinberg.Draw(pm, bounds, img, bounds.Min)

	transparent := uint8(len(gifPalette) - 1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.NRGBAAt(x, y).A == 0 {
				pm.SetColorIndex(x, y, transparent)
			}
		}
	}

	var buf bytes.Buffer
	if err := gif.Encode(&buf, pm, nil); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (b *Backend) quality() int {
	if b.Quality <= 0 || b.Quality > 100 {
		return 75
	}
	return b.Quality
}

// Allocate creates raster painted with backend background
func (b *Backend) Allocate(width, height int) (canvas.Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(canvas.ErrInvalidDimensions, "%dx%d", width, height)
	}

	return &Raster{img: imaging.New(width, height, b.Background)}, nil
}

// Fill flood fills area of color at (x, y)
func (b *Backend) Fill(r canvas.Raster, x, y int, c color.Color) error {
	raster, err := unwrap(r)
	if err != nil {
		return err
	}

	floodFill(raster.img, image.Pt(x, y), color.NRGBAModel.Convert(c).(color.NRGBA))
	return nil
}

// ResampledCopy scales sr of src into dr of dst. Parts of dr outside of dst are clipped
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

	if dr.Size() == sr.Size() {
		draw.Draw(d.img, dr, s.img, sr.Min, draw.Src)
		return nil
	}

	interpolator := b.Interpolator
	if interpolator == nil {
		interpolator = draw.CatmullRom
	}

	interpolator.Scale(d.img, dr, s.img, sr, draw.Src, nil)
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

	if opacity <= 0 {
		return nil
	}
	if opacity > 100 {
		opacity = 100
	}

	front := imaging.Crop(s.img, sr)
	d.img = imaging.Overlay(d.img, front, dp, float64(opacity)/100)
	return nil
}

// SetColorKey makes every pixel of color c fully transparent
func (b *Backend) SetColorKey(r canvas.Raster, c color.Color) error {
	raster, err := unwrap(r)
	if err != nil {
		return err
	}

	key := color.NRGBAModel.Convert(c).(color.NRGBA)
	pix := raster.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] == key.R && pix[i+1] == key.G && pix[i+2] == key.B {
			pix[i+3] = 0
		}
	}

	return nil
}

// Rotate rotates raster counter-clockwise, uncovered area is painted with fill
func (b *Backend) Rotate(r canvas.Raster, angle float64, fill color.Color) (canvas.Raster, error) {
	raster, err := unwrap(r)
	if err != nil {
		return nil, err
	}

	return &Raster{img: imaging.Rotate(raster.img, angle, fill)}, nil
}

// Release drops pixels of raster
func (b *Backend) Release(r canvas.Raster) error {
	raster, ok := r.(*Raster)
	if !ok || raster == nil {
		return ErrForeignRaster
	}

	raster.img = nil
	return nil
}
