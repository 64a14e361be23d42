package canvas

import (
	"image"
	"strconv"

	"github.com/pkg/errors"
)

type placementMode int

const (
	placeFull placementMode = iota
	placeMiddle
	placeCorner
)

// Placement describes how foreground is sized and positioned on base during merge
type Placement struct {
	mode   placementMode
	ratio  int
	corner Corner
}

// Full fits foreground in whole base and centers it
func Full() Placement {
	return Placement{mode: placeFull, ratio: 1}
}

// Middle fits foreground in base dimensions divided by ratio and centers it
func Middle(ratio int) Placement {
	return Placement{mode: placeMiddle, ratio: ratio}
}

// AtCorner fits foreground in base dimensions divided by ratio and sticks it to corner
func AtCorner(ratio int, corner Corner) Placement {
	return Placement{mode: placeCorner, ratio: ratio, corner: corner}
}

// Ratio returns dimension divisor of placement
func (p Placement) Ratio() int {
	return p.ratio
}

// Corner returns corner used by placement
func (p Placement) Corner() Corner {
	return p.corner
}

// ForegroundBox returns box in which foreground has to fit
func (p Placement) ForegroundBox(baseW, baseH int) (int, int, error) {
	if p.mode == placeFull {
		return baseW, baseH, nil
	}

	if p.ratio <= 0 {
		return 0, 0, errors.Wrapf(ErrInvalidRatio, "got %d", p.ratio)
	}

	return atLeastOne(baseW / p.ratio), atLeastOne(baseH / p.ratio), nil
}

// Offset returns position of fgW x fgH foreground on base
func (p Placement) Offset(baseW, baseH, fgW, fgH int) image.Point {
	if p.mode == placeCorner {
		return CornerOffset(p.corner, baseW, baseH, fgW, fgH)
	}

	return CenterOffset(baseW, baseH, fgW, fgH)
}

func (p Placement) String() string {
	switch p.mode {
	case placeMiddle:
		return "middle/" + strconv.Itoa(p.ratio)
	case placeCorner:
		return "corner/" + strconv.Itoa(p.ratio) + "/" + p.corner.String()
	default:
		return "full"
	}
}
