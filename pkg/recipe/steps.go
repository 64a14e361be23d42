package recipe

import (
	"context"
	"image/color"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/helpers"
	"github.com/pkg/errors"
)

// Step is single operation of recipe
type Step interface {
	// Name returns operation name
	Name() string
	// Apply runs operation. Result is either c modified in place or new canvas
	Apply(ctx context.Context, c *canvas.Canvas) (*canvas.Canvas, error)
	// InPlace reports if Apply modifies c instead of creating new canvas
	InPlace() bool

	write(h *fnvI64)
}

type resizeStep struct {
	width   int
	height  int
	outside bool
}

func (s resizeStep) Name() string {
	return "resize"
}

func (s resizeStep) InPlace() bool {
	return false
}

func (s resizeStep) Apply(_ context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	if s.outside {
		return c.ResizeFitOutside(s.width, s.height)
	}
	return c.ResizeFitInside(s.width, s.height)
}

func (s resizeStep) write(h *fnvI64) {
	mode := uint64(0)
	if s.outside {
		mode = 1
	}
	h.Write(1111, uint64(s.width)*7, uint64(s.height)*3, mode)
}

type cropStep struct {
	width  int
	height int
}

func (s cropStep) Name() string {
	return "crop"
}

func (s cropStep) InPlace() bool {
	return false
}

func (s cropStep) Apply(_ context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	return c.CropToExact(s.width, s.height)
}

func (s cropStep) write(h *fnvI64) {
	h.Write(1212, uint64(s.width)*5, uint64(s.height))
}

type rotateStep struct {
	angle float64
}

func (s rotateStep) Name() string {
	return "rotate"
}

func (s rotateStep) InPlace() bool {
	return false
}

func (s rotateStep) Apply(_ context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	return c.Rotate(s.angle)
}

func (s rotateStep) write(h *fnvI64) {
	h.Write(32941)
	h.WriteFloat(s.angle)
}

type transparentStep struct{}

func (s transparentStep) Name() string {
	return "transparent"
}

func (s transparentStep) InPlace() bool {
	return false
}

func (s transparentStep) Apply(_ context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	return c.Transparent()
}

func (s transparentStep) write(h *fnvI64) {
	h.Write(1999)
}

// overlay keeps fetched overlay image between renders
type overlay struct {
	uri    string
	mu     sync.Mutex
	buf    []byte
	format canvas.Format
}

func (o *overlay) load(ctx context.Context, b canvas.Backend) (*canvas.Canvas, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.buf == nil {
		buf, err := helpers.FetchObject(ctx, o.uri)
		if err != nil {
			return nil, errors.Wrapf(err, "overlay %s", o.uri)
		}

		format, err := detectFormat(o.uri, buf)
		if err != nil {
			return nil, err
		}

		o.buf = buf
		o.format = format
	}

	return canvas.Decode(b, o.buf, o.format)
}

// detectFormat takes format from extension of uri path and falls back to content sniffing
func detectFormat(uri string, buf []byte) (canvas.Format, error) {
	p := uri
	if helpers.IsURL(uri) {
		if u, err := url.Parse(uri); err == nil {
			p = u.Path
		}
	}

	if f, err := canvas.FormatFromPath(p); err == nil {
		return f, nil
	}

	contentType := http.DetectContentType(buf)
	if f, err := canvas.ParseFormat(strings.TrimPrefix(contentType, "image/")); err == nil {
		return f, nil
	}

	return canvas.UNKNOWN, errors.Wrapf(canvas.ErrDecode, "overlay %s has unsupported type %s", uri, contentType)
}

type mergeStep struct {
	image     *overlay
	opacity   int
	placement canvas.Placement
}

func (s *mergeStep) Name() string {
	return "merge"
}

func (s *mergeStep) InPlace() bool {
	return true
}

func (s *mergeStep) Apply(ctx context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	fg, err := s.image.load(ctx, c.Backend())
	if err != nil {
		return nil, err
	}
	defer fg.Destroy()

	if err = c.Merge(fg, s.opacity, s.placement); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *mergeStep) write(h *fnvI64) {
	h.Write(171200, uint64(s.opacity))
	h.WriteString(s.image.uri)
	h.WriteString(s.placement.String())
}

type backgroundStep struct {
	color  color.NRGBA
	width  int
	height int
}

func (s backgroundStep) Name() string {
	return "background"
}

func (s backgroundStep) InPlace() bool {
	return false
}

func (s backgroundStep) Apply(_ context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	bg, err := canvas.NewSolid(c.Backend(), s.color, s.width, s.height)
	if err != nil {
		return nil, err
	}

	if err = bg.Merge(c, 100, canvas.Full()); err != nil {
		bg.Destroy()
		return nil, err
	}

	return bg, nil
}

func (s backgroundStep) write(h *fnvI64) {
	h.Write(32309, uint64(s.color.R), uint64(s.color.G), uint64(s.color.B), uint64(s.width), uint64(s.height))
}

// parseColor parses #rrggbb, empty string gives white
func parseColor(s string) (color.NRGBA, error) {
	if s == "" {
		return canvas.White, nil
	}

	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(strings.TrimPrefix(s, "#")) != 6 {
		return color.NRGBA{}, errors.Errorf("invalid color %q", s)
	}

	return canvas.RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func compileStep(step config.Step) (Step, error) {
	switch step.Kind() {
	case "resize":
		r := step.Resize
		if r.Width <= 0 || r.Height <= 0 {
			return nil, errors.Wrapf(canvas.ErrInvalidDimensions, "resize %dx%d", r.Width, r.Height)
		}
		switch r.Mode {
		case "", "inside":
			return resizeStep{width: r.Width, height: r.Height}, nil
		case "outside":
			return resizeStep{width: r.Width, height: r.Height, outside: true}, nil
		default:
			return nil, errors.Errorf("unknown resize mode %q", r.Mode)
		}
	case "crop":
		if step.Crop.Width <= 0 || step.Crop.Height <= 0 {
			return nil, errors.Wrapf(canvas.ErrInvalidDimensions, "crop %dx%d", step.Crop.Width, step.Crop.Height)
		}
		return cropStep{width: step.Crop.Width, height: step.Crop.Height}, nil
	case "rotate":
		return rotateStep{angle: step.Rotate.Angle}, nil
	case "transparent":
		return transparentStep{}, nil
	case "merge":
		return compileMerge(step.Merge)
	case "background":
		b := step.Background
		c, err := parseColor(b.Color)
		if err != nil {
			return nil, err
		}
		if b.Width <= 0 || b.Height <= 0 {
			return nil, errors.Wrapf(canvas.ErrInvalidDimensions, "background %dx%d", b.Width, b.Height)
		}
		return backgroundStep{color: c, width: b.Width, height: b.Height}, nil
	case "":
		return nil, errors.New("empty step")
	default:
		return nil, errors.New("step has more than one operation")
	}
}

func compileMerge(m *config.MergeStep) (Step, error) {
	if m.Image == "" {
		return nil, errors.New("merge requires image")
	}

	if m.Opacity < 0 || m.Opacity > 100 {
		return nil, errors.Errorf("merge opacity %d out of range 0-100", m.Opacity)
	}

	var p canvas.Placement
	switch m.Placement {
	case "", "full":
		p = canvas.Full()
	case "middle":
		p = canvas.Middle(m.Ratio)
	case "corner":
		corner, err := canvas.ParseCorner(m.Corner)
		if err != nil {
			return nil, err
		}
		p = canvas.AtCorner(m.Ratio, corner)
	default:
		return nil, errors.Errorf("unknown merge placement %q", m.Placement)
	}

	if p.Ratio() <= 0 {
		return nil, errors.Wrapf(canvas.ErrInvalidRatio, "merge ratio %d", m.Ratio)
	}

	return &mergeStep{image: &overlay{uri: m.Image}, opacity: m.Opacity, placement: p}, nil
}
