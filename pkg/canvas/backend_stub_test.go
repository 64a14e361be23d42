package canvas

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

type stubRaster struct {
	id       int
	w, h     int
	released bool
	colorKey color.Color
	fill     color.Color
}

func (r *stubRaster) Width() int  { return r.w }
func (r *stubRaster) Height() int { return r.h }

type resampleCall struct {
	dst, src *stubRaster
	dr, sr   image.Rectangle
}

type compositeCall struct {
	dst, src *stubRaster
	dp       image.Point
	sr       image.Rectangle
	opacity  int
}

// stubBackend records geometry of every call and never touches pixels
type stubBackend struct {
	next       int
	allocated  []*stubRaster
	resamples  []resampleCall
	composites []compositeCall
	rotations  []float64
	encoded    []Format
	decodeErr  error
	failOn     string
}

func (b *stubBackend) alloc(w, h int) *stubRaster {
	b.next++
	r := &stubRaster{id: b.next, w: w, h: h}
	b.allocated = append(b.allocated, r)
	return r
}

func (b *stubBackend) fail(op string) error {
	if b.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (b *stubBackend) Decode(buf []byte, format Format) (Raster, error) {
	if b.decodeErr != nil {
		return nil, b.decodeErr
	}
	// stub payload: two bytes width, height
	if len(buf) < 2 {
		return nil, errors.New("short buffer")
	}
	return b.alloc(int(buf[0]), int(buf[1])), nil
}

func (b *stubBackend) Encode(r Raster, format Format) ([]byte, error) {
	if err := b.fail("encode"); err != nil {
		return nil, err
	}
	b.encoded = append(b.encoded, format)
	return []byte{byte(r.Width()), byte(r.Height())}, nil
}

func (b *stubBackend) Allocate(width, height int) (Raster, error) {
	if err := b.fail("allocate"); err != nil {
		return nil, err
	}
	return b.alloc(width, height), nil
}

func (b *stubBackend) Fill(r Raster, x, y int, c color.Color) error {
	if err := b.fail("fill"); err != nil {
		return err
	}
	r.(*stubRaster).fill = c
	return nil
}

func (b *stubBackend) ResampledCopy(dst, src Raster, dr, sr image.Rectangle) error {
	if err := b.fail("resample"); err != nil {
		return err
	}
	b.resamples = append(b.resamples, resampleCall{dst: dst.(*stubRaster), src: src.(*stubRaster), dr: dr, sr: sr})
	return nil
}

func (b *stubBackend) AlphaComposite(dst, src Raster, dp image.Point, sr image.Rectangle, opacity int) error {
	if err := b.fail("composite"); err != nil {
		return err
	}
	b.composites = append(b.composites, compositeCall{dst: dst.(*stubRaster), src: src.(*stubRaster), dp: dp, sr: sr, opacity: opacity})
	return nil
}

func (b *stubBackend) SetColorKey(r Raster, c color.Color) error {
	r.(*stubRaster).colorKey = c
	return nil
}

func (b *stubBackend) Rotate(r Raster, angle float64, fill color.Color) (Raster, error) {
	if err := b.fail("rotate"); err != nil {
		return nil, err
	}
	b.rotations = append(b.rotations, angle)
	if int(angle)%180 == 90 {
		return b.alloc(r.Height(), r.Width()), nil
	}
	return b.alloc(r.Width(), r.Height()), nil
}

func (b *stubBackend) Release(r Raster) error {
	r.(*stubRaster).released = true
	return nil
}

func (b *stubBackend) live() int {
	n := 0
	for _, r := range b.allocated {
		if !r.released {
			n++
		}
	}
	return n
}

func solid(b *stubBackend, w, h int) *Canvas {
	c, err := NewSolid(b, White, w, h)
	if err != nil {
		panic(err)
	}
	return c
}
