// Package recipe turns configured presets into ordered canvas operations
package recipe

import (
	"context"
	"strconv"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Recipe is compiled preset
type Recipe struct {
	Name         string
	CacheControl string
	format       canvas.Format
	steps        []Step
	hash         fnvI64
}

// Compile validates preset and builds recipe from it
func Compile(p config.Preset) (*Recipe, error) {
	r := &Recipe{Name: p.Name, CacheControl: p.CacheControl}

	if p.Format != "" {
		f, err := canvas.ParseFormat(p.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "preset %s", p.Name)
		}
		r.format = f
	}

	if len(p.Steps) == 0 {
		return nil, errors.Errorf("preset %s has no steps", p.Name)
	}

	r.hash.Write(1122121, uint64(r.format))
	r.steps = make([]Step, 0, len(p.Steps))
	for i, s := range p.Steps {
		step, err := compileStep(s)
		if err != nil {
			return nil, errors.Wrapf(err, "preset %s step %d", p.Name, i)
		}

		step.write(&r.hash)
		r.steps = append(r.steps, step)
	}

	return r, nil
}

// CompileAll compiles every preset from configuration
func CompileAll(presets map[string]config.Preset) (map[string]*Recipe, error) {
	recipes := make(map[string]*Recipe, len(presets))
	for name, p := range presets {
		if p.Name == "" {
			p.Name = name
		}

		r, err := Compile(p)
		if err != nil {
			return nil, err
		}
		recipes[name] = r
	}

	return recipes, nil
}

// Steps returns names of recipe operations
func (r *Recipe) Steps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name()
	}
	return names
}

// Hash returns recipe identifier, equal recipes have equal hash
func (r *Recipe) Hash() uint64 {
	return sum(r.hash)
}

// HashStr returns recipe identifier as hex string
func (r *Recipe) HashStr() string {
	return strconv.FormatUint(r.Hash(), 16)
}

// Format returns output format for source in given format
func (r *Recipe) Format(source canvas.Format) canvas.Format {
	if r.format == canvas.UNKNOWN {
		return source
	}
	return r.format
}

// Apply runs all steps on c and returns result. c itself is never modified or destroyed,
// intermediate canvases are destroyed
func (r *Recipe) Apply(ctx context.Context, c *canvas.Canvas) (*canvas.Canvas, error) {
	current := c
	drop := func() {
		if current != c {
			current.Destroy()
		}
	}

	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			drop()
			return nil, err
		}

		if step.InPlace() && current == c {
			cp, err := c.ResizeFitInside(c.Width(), c.Height())
			if err != nil {
				return nil, err
			}
			current = cp
		}

		next, err := step.Apply(ctx, current)
		if err != nil {
			monitoring.Log().Warn("Recipe step failed", zap.String("preset", r.Name), zap.String("step", step.Name()), zap.Error(err))
			drop()
			return nil, err
		}

		if next != current {
			drop()
			current = next
		}

		monitoring.Log().Debug("Recipe step done", zap.String("preset", r.Name), zap.String("step", step.Name()),
			zap.Int("width", current.Width()), zap.Int("height", current.Height()))
	}

	return current, nil
}
