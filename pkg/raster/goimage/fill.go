package goimage

import (
	"image"
	"image/color"
)

// floodFill replaces 4-connected area having color of start pixel with c (scanline algorithm)
func floodFill(img *image.NRGBA, start image.Point, c color.NRGBA) {
	b := img.Bounds()
	if !start.In(b) {
		return
	}

	target := img.NRGBAAt(start.X, start.Y)
	if target == c {
		return
	}

	stack := []image.Point{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if img.NRGBAAt(p.X, p.Y) != target {
			continue
		}

		left := p.X
		for left > b.Min.X && img.NRGBAAt(left-1, p.Y) == target {
			left--
		}
		right := p.X
		for right < b.Max.X-1 && img.NRGBAAt(right+1, p.Y) == target {
			right++
		}

		for x := left; x <= right; x++ {
			img.SetNRGBA(x, p.Y, c)
			if p.Y > b.Min.Y && img.NRGBAAt(x, p.Y-1) == target {
				stack = append(stack, image.Pt(x, p.Y-1))
			}
			if p.Y < b.Max.Y-1 && img.NRGBAAt(x, p.Y+1) == target {
				stack = append(stack, image.Pt(x, p.Y+1))
			}
		}
	}
}
