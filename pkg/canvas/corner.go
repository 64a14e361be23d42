package canvas

import (
	"strings"

	"github.com/pkg/errors"
)

// Corner of base canvas used by corner merges
type Corner int

const (
	// TopLeft corner, legacy code 00
	TopLeft Corner = iota
	// BottomLeft corner, legacy code 01
	BottomLeft
	// TopRight corner, legacy code 10
	TopRight
	// BottomRight corner, legacy code 11
	BottomRight
)

// ErrUnknownCorner is returned by ParseCorner
var ErrUnknownCorner = errors.New("unknown corner")

var cornerNames = map[string]Corner{
	"top-left":     TopLeft,
	"bottom-left":  BottomLeft,
	"top-right":    TopRight,
	"bottom-right": BottomRight,
	// legacy (column, row) digit codes
	"00": TopLeft,
	"0":  TopLeft,
	"01": BottomLeft,
	"1":  BottomLeft,
	"10": TopRight,
	"11": BottomRight,
}

// ParseCorner returns Corner from name (top-left, bottom-right, ...) or legacy code (00, 01, 10, 11)
func ParseCorner(name string) (Corner, error) {
	if c, ok := cornerNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c, nil
	}

	return TopLeft, errors.Wrapf(ErrUnknownCorner, "%q", name)
}

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case BottomLeft:
		return "bottom-left"
	case TopRight:
		return "top-right"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}
