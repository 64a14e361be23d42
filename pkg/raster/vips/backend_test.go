package vips

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/raster/goimage"
	"github.com/h2non/bimg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_NewSolidAndExport(t *testing.T) {
	b := NewBackend()
	c, err := canvas.NewSolid(b, canvas.RGB(255, 255, 255), 100, 50)
	require.Nil(t, err)

	assert.Equal(t, 100, c.Width())
	assert.Equal(t, 50, c.Height())

	for _, f := range []canvas.Format{canvas.JPEG, canvas.PNG, canvas.GIF} {
		buf, err := c.Export(f)
		require.Nil(t, err, f.String())

		meta, err := bimg.Metadata(buf)
		require.Nil(t, err)
		assert.Equal(t, 100, meta.Size.Width)
		assert.Equal(t, 50, meta.Size.Height)

		decoded, err := canvas.Decode(b, buf, f)
		require.Nil(t, err, f.String())
		assert.Equal(t, 100, decoded.Width())
	}
}

func TestBackend_DecodeMismatch(t *testing.T) {
	b := NewBackend()
	c, err := canvas.NewSolid(b, canvas.White, 10, 10)
	require.Nil(t, err)
	buf, err := c.Export(canvas.PNG)
	require.Nil(t, err)

	_, err = canvas.Decode(b, buf, canvas.JPEG)
	assert.ErrorIs(t, err, canvas.ErrDecode)
}

func TestBackend_Geometry(t *testing.T) {
	b := NewBackend()
	base, err := canvas.NewSolid(b, canvas.RGB(0, 0, 0), 800, 600)
	require.Nil(t, err)
	fg, err := canvas.NewSolid(b, canvas.White, 400, 300)
	require.Nil(t, err)

	inside, err := base.ResizeFitInside(100, 100)
	require.Nil(t, err)
	assert.Equal(t, []int{100, 75}, []int{inside.Width(), inside.Height()})

	crop, err := base.CropToExact(100, 100)
	require.Nil(t, err)
	assert.Equal(t, []int{100, 100}, []int{crop.Width(), crop.Height()})

	_, err = base.MergeMiddle(fg, 80, 4)
	require.Nil(t, err)
	assert.Equal(t, 800, base.Width())

	_, err = base.MergeCorner(fg, 100, 4, canvas.BottomRight)
	require.Nil(t, err)

	tr, err := base.Transparent()
	require.Nil(t, err)
	assert.Equal(t, 800, tr.Width())
}

func TestBackend_Rotate(t *testing.T) {
	b := NewBackend()
	c, err := canvas.NewSolid(b, canvas.White, 80, 60)
	require.Nil(t, err)

	r, err := c.Rotate(90)
	require.Nil(t, err)
	assert.Equal(t, []int{60, 80}, []int{r.Width(), r.Height()})

	r, err = c.Rotate(-180)
	require.Nil(t, err)
	assert.Equal(t, []int{80, 60}, []int{r.Width(), r.Height()})

	r, err = c.Rotate(30)
	require.Nil(t, err)
	assert.True(t, r.Width() > 80)
}

func transparentPNG(t *testing.T, w, h int) []byte {
	b := goimage.NewBackend()
	c, err := canvas.NewSolid(b, canvas.White, w, h)
	require.Nil(t, err)
	defer c.Destroy()

	tr, err := c.Transparent()
	require.Nil(t, err)
	defer tr.Destroy()

	buf, err := tr.Export(canvas.PNG)
	require.Nil(t, err)
	return buf
}

func alphaAt(t *testing.T, c *canvas.Canvas, x, y int) uint32 {
	buf, err := c.Export(canvas.PNG)
	require.Nil(t, err)
	img, err := png.Decode(bytes.NewReader(buf))
	require.Nil(t, err)

	_, _, _, a := img.At(x, y).RGBA()
	return a
}

func TestBackend_CopyKeepsAlpha(t *testing.T) {
	b := NewBackend()
	src, err := canvas.Decode(b, transparentPNG(t, 40, 20), canvas.PNG)
	require.Nil(t, err)
	require.Equal(t, uint32(0), alphaAt(t, src, 0, 0))

	same, err := src.ResizeFitInside(40, 20)
	require.Nil(t, err)
	assert.Equal(t, uint32(0), alphaAt(t, same, 10, 10))

	smaller, err := src.ResizeFitInside(20, 20)
	require.Nil(t, err)
	assert.Equal(t, []int{20, 10}, []int{smaller.Width(), smaller.Height()})
	assert.Equal(t, uint32(0), alphaAt(t, smaller, 5, 5))

	crop, err := src.CropToExact(10, 10)
	require.Nil(t, err)
	assert.Equal(t, []int{10, 10}, []int{crop.Width(), crop.Height()})
	assert.Equal(t, uint32(0), alphaAt(t, crop, 5, 5))
}

func TestBackend_ClippedPaste(t *testing.T) {
	b := NewBackend()
	dst, err := b.Allocate(10, 10)
	require.Nil(t, err)
	src, err := b.Allocate(20, 20)
	require.Nil(t, err)

	assert.Nil(t, b.ResampledCopy(dst, src, image.Rect(-5, -5, 15, 15), image.Rect(0, 0, 20, 20)))
	assert.Nil(t, b.AlphaComposite(dst, src, image.Pt(50, 50), image.Rect(0, 0, 20, 20), 50))
	assert.Equal(t, 10, dst.Width())
}

func TestBackend_Release(t *testing.T) {
	b := NewBackend()
	r, err := b.Allocate(10, 10)
	require.Nil(t, err)

	require.Nil(t, b.Release(r))
	_, err = b.Encode(r, canvas.PNG)
	assert.ErrorIs(t, err, ErrForeignRaster)
}
