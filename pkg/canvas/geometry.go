package canvas

import "image"

// FitInside returns size of src scaled with preserved aspect ratio to fit in target box.
// One of returned sides equals its target, the other is lower or equal to its target.
// Integer division truncates. srcW and srcH must be positive
func FitInside(srcW, srcH, targetW, targetH int) (int, int) {
	// scaling by width would make height exceed target
	if targetH*srcW < targetW*srcH {
		return atLeastOne(targetH * srcW / srcH), targetH
	}

	return targetW, atLeastOne(targetW * srcH / srcW)
}

// FitOutside returns size of src scaled with preserved aspect ratio to cover target box.
// One of returned sides equals its target, the other is greater or equal to its target
func FitOutside(srcW, srcH, targetW, targetH int) (int, int) {
	if targetH*srcW >= targetW*srcH {
		return atLeastOne(targetH * srcW / srcH), targetH
	}

	return targetW, atLeastOne(targetW * srcH / srcW)
}

// CenterOffset returns position of fg centered on base
func CenterOffset(baseW, baseH, fgW, fgH int) image.Point {
	return image.Pt((baseW-fgW)/2, (baseH-fgH)/2)
}

// CropOffset returns (non-positive) position of cover image so that its center
// matches center of width x height box
func CropOffset(coverW, coverH, width, height int) image.Point {
	return image.Pt(-((coverW - width) / 2), -((coverH - height) / 2))
}

// CornerOffset returns position which sticks fg to given corner of base.
// Unknown corners give (0, 0)
func CornerOffset(corner Corner, baseW, baseH, fgW, fgH int) image.Point {
	switch corner {
	case TopLeft:
		return image.Pt(0, 0)
	case BottomLeft:
		return image.Pt(0, baseH-fgH)
	case TopRight:
		return image.Pt(baseW-fgW, 0)
	case BottomRight:
		return image.Pt(baseW-fgW, baseH-fgH)
	}

	return image.Point{}
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}

	return v
}
