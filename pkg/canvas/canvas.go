// Package canvas computes image geometry (aspect preserving resize, crop, merge placement)
// and delegates all pixel work to a Backend.
package canvas

import (
	"image"
	"image/color"
	"os"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Canvas wraps single backend raster.
// Canvas is not safe for concurrent use
type Canvas struct {
	backend Backend
	raster  Raster
}

// New wraps raster created by backend
func New(b Backend, r Raster) *Canvas {
	return &Canvas{backend: b, raster: r}
}

// Load reads image from path. Format is taken from file extension
func Load(b Backend, path string) (*Canvas, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "file %s", path)
		}
		return nil, err
	}

	if info.IsDir() {
		return nil, errors.Wrapf(ErrNotFound, "%s is directory", path)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%s: %v", path, err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Decode(b, buf, format)
}

// Decode creates canvas from encoded image
func Decode(b Backend, buf []byte, format Format) (*Canvas, error) {
	if format == UNKNOWN {
		return nil, errors.Wrap(ErrDecode, "unknown format")
	}

	t := monitoring.Report().Timer("canvas_op_time;op:decode")
	defer t.Done()

	r, err := b.Decode(buf, format)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%s: %v", format, err)
	}

	return New(b, r), nil
}

// NewSolid creates width x height canvas painted with color c
func NewSolid(b Backend, c color.Color, width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "%dx%d", width, height)
	}

	r, err := b.Allocate(width, height)
	if err != nil {
		return nil, backendError("allocate", err)
	}

	if err = b.Fill(r, 0, 0, c); err != nil {
		b.Release(r)
		return nil, backendError("fill", err)
	}

	return New(b, r), nil
}

// Backend returns backend owning raster of canvas
func (c *Canvas) Backend() Backend {
	return c.backend
}

// Raster returns underlying raster, nil after Destroy
func (c *Canvas) Raster() Raster {
	return c.raster
}

// Width returns width in px, 0 for destroyed canvas
func (c *Canvas) Width() int {
	if c.raster == nil {
		return 0
	}
	return c.raster.Width()
}

// Height returns height in px, 0 for destroyed canvas
func (c *Canvas) Height() int {
	if c.raster == nil {
		return 0
	}
	return c.raster.Height()
}

func (c *Canvas) valid() error {
	if c == nil || c.raster == nil || c.backend == nil {
		return ErrInvalidHandle
	}

	return nil
}

// resample creates new canvas with whole current image scaled to width x height
func (c *Canvas) resample(width, height int) (*Canvas, error) {
	dst, err := c.backend.Allocate(width, height)
	if err != nil {
		return nil, backendError("allocate", err)
	}

	err = c.backend.ResampledCopy(dst, c.raster, image.Rect(0, 0, width, height), bounds(c.raster))
	if err != nil {
		c.backend.Release(dst)
		return nil, backendError("resample", err)
	}

	return New(c.backend, dst), nil
}

func checkTarget(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrInvalidDimensions, "%dx%d", width, height)
	}
	return nil
}

// ResizeFitInside returns new canvas scaled to fit in width x height box
func (c *Canvas) ResizeFitInside(width, height int) (*Canvas, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	if err := checkTarget(width, height); err != nil {
		return nil, err
	}

	t := monitoring.Report().Timer("canvas_op_time;op:resize")
	defer t.Done()

	return c.resample(FitInside(c.Width(), c.Height(), width, height))
}

// ResizeFitOutside returns new canvas scaled to cover width x height box
func (c *Canvas) ResizeFitOutside(width, height int) (*Canvas, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	if err := checkTarget(width, height); err != nil {
		return nil, err
	}

	t := monitoring.Report().Timer("canvas_op_time;op:resize")
	defer t.Done()

	return c.resample(FitOutside(c.Width(), c.Height(), width, height))
}

// CropToExact returns width x height canvas: image covering the box, centered and with overflow cut off
func (c *Canvas) CropToExact(width, height int) (*Canvas, error) {
	cover, err := c.ResizeFitOutside(width, height)
	if err != nil {
		return nil, err
	}
	defer cover.release("crop")

	t := monitoring.Report().Timer("canvas_op_time;op:crop")
	defer t.Done()

	dst, err := c.backend.Allocate(width, height)
	if err != nil {
		return nil, backendError("allocate", err)
	}

	off := CropOffset(cover.Width(), cover.Height(), width, height)
	dr := image.Rect(off.X, off.Y, off.X+cover.Width(), off.Y+cover.Height())
	if err = c.backend.ResampledCopy(dst, cover.raster, dr, bounds(cover.raster)); err != nil {
		c.backend.Release(dst)
		return nil, backendError("resample", err)
	}

	return New(c.backend, dst), nil
}

// Transparent returns copy of canvas in which white color is transparent
func (c *Canvas) Transparent() (*Canvas, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}

	dst, err := c.backend.Allocate(c.Width(), c.Height())
	if err != nil {
		return nil, backendError("allocate", err)
	}

	if err = c.backend.AlphaComposite(dst, c.raster, image.Point{}, bounds(c.raster), 100); err != nil {
		c.backend.Release(dst)
		return nil, backendError("composite", err)
	}

	if err = c.backend.SetColorKey(dst, White); err != nil {
		c.backend.Release(dst)
		return nil, backendError("colorkey", err)
	}

	return New(c.backend, dst), nil
}

// Merge composites fg onto canvas in place. fg is resized to box given by placement first,
// fg itself is not modified
func (c *Canvas) Merge(fg *Canvas, opacity int, p Placement) error {
	if err := c.valid(); err != nil {
		return err
	}
	if err := fg.valid(); err != nil {
		return errors.Wrap(err, "foreground")
	}

	boxW, boxH, err := p.ForegroundBox(c.Width(), c.Height())
	if err != nil {
		return err
	}

	t := monitoring.Report().Timer("canvas_op_time;op:merge")
	defer t.Done()

	front, err := fg.ResizeFitInside(boxW, boxH)
	if err != nil {
		return err
	}
	defer front.release("merge")

	off := p.Offset(c.Width(), c.Height(), front.Width(), front.Height())
	err = c.backend.AlphaComposite(c.raster, front.raster, off, bounds(front.raster), opacity)
	return backendError("composite", err)
}

// MergeCopy works like Merge but leaves canvas untouched and returns merged copy
func (c *Canvas) MergeCopy(fg *Canvas, opacity int, p Placement) (*Canvas, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}

	cp, err := c.resample(c.Width(), c.Height())
	if err != nil {
		return nil, err
	}

	if err = cp.Merge(fg, opacity, p); err != nil {
		cp.Destroy()
		return nil, err
	}

	return cp, nil
}

// MergeFull fits fg in whole canvas and composites it centered. Canvas is modified in place and returned
func (c *Canvas) MergeFull(fg *Canvas, opacity int) (*Canvas, error) {
	return c, c.Merge(fg, opacity, Full())
}

// MergeMiddle fits fg in canvas dimensions divided by ratio and composites it centered.
// Canvas is modified in place and returned
func (c *Canvas) MergeMiddle(fg *Canvas, opacity int, ratio int) (*Canvas, error) {
	return c, c.Merge(fg, opacity, Middle(ratio))
}

// MergeCorner fits fg in canvas dimensions divided by ratio and composites it in given corner.
// Canvas is modified in place and returned
func (c *Canvas) MergeCorner(fg *Canvas, opacity int, ratio int, corner Corner) (*Canvas, error) {
	return c, c.Merge(fg, opacity, AtCorner(ratio, corner))
}

// Rotate returns new canvas rotated counter-clockwise by angle degrees, uncovered area is white
func (c *Canvas) Rotate(angle float64) (*Canvas, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}

	t := monitoring.Report().Timer("canvas_op_time;op:rotate")
	defer t.Done()

	r, err := c.backend.Rotate(c.raster, angle, White)
	if err != nil {
		return nil, backendError("rotate", err)
	}

	return New(c.backend, r), nil
}

// Export encodes canvas
func (c *Canvas) Export(format Format) ([]byte, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}

	if format == UNKNOWN {
		return nil, errors.Wrap(ErrUnsupportedFormat, "export")
	}

	t := monitoring.Report().Timer("canvas_op_time;op:encode")
	defer t.Done()

	buf, err := c.backend.Encode(c.raster, format)
	if err != nil {
		return nil, backendError("encode", err)
	}

	return buf, nil
}

// Save encodes canvas and writes it to path
func (c *Canvas) Save(path string, format Format) error {
	buf, err := c.Export(format)
	if err != nil {
		return err
	}

	return os.WriteFile(path, buf, 0644)
}

// Destroy releases raster. Canvas can't be used afterwards
func (c *Canvas) Destroy() error {
	if c == nil || c.raster == nil {
		return nil
	}

	err := c.backend.Release(c.raster)
	c.raster = nil
	return backendError("release", err)
}

func (c *Canvas) release(op string) {
	if err := c.Destroy(); err != nil {
		monitoring.Log().Warn("Canvas unable to release intermediate", zap.String("op", op), zap.Error(err))
		return
	}

	monitoring.Log().Debug("Canvas released intermediate", zap.String("op", op))
}
