package recipe

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/helpers"
	"github.com/aldor007/easel/pkg/raster/goimage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func pixel(c *canvas.Canvas, x, y int) color.NRGBA {
	return c.Raster().(*goimage.Raster).Image().NRGBAAt(x, y)
}

func solidPNG(t *testing.T, b canvas.Backend, c color.Color, w, h int) []byte {
	cv, err := canvas.NewSolid(b, c, w, h)
	require.Nil(t, err)
	defer cv.Destroy()

	buf, err := cv.Export(canvas.PNG)
	require.Nil(t, err)
	return buf
}

func compile(t *testing.T, p config.Preset) *Recipe {
	r, err := Compile(p)
	require.Nil(t, err)
	return r
}

func TestCompile(t *testing.T) {
	r := compile(t, config.Preset{
		Name:   "thumb",
		Format: "png",
		Steps: []config.Step{
			{Resize: &config.ResizeStep{Width: 100, Height: 100}},
			{Crop: &config.CropStep{Width: 50, Height: 50}},
			{Rotate: &config.RotateStep{Angle: 90}},
			{Transparent: true},
			{Merge: &config.MergeStep{Image: "a.png", Opacity: 50, Placement: "corner", Ratio: 4, Corner: "11"}},
			{Background: &config.BackgroundStep{Color: "#000000", Width: 10, Height: 10}},
		},
	})

	assert.Equal(t, []string{"resize", "crop", "rotate", "transparent", "merge", "background"}, r.Steps())
	assert.Equal(t, canvas.PNG, r.Format(canvas.JPEG))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		preset config.Preset
		err    error
	}{
		{"no steps", config.Preset{}, nil},
		{"bad format", config.Preset{Format: "bmp", Steps: []config.Step{{Transparent: true}}}, canvas.ErrUnsupportedFormat},
		{"empty step", config.Preset{Steps: []config.Step{{}}}, nil},
		{"two operations", config.Preset{Steps: []config.Step{{Transparent: true, Crop: &config.CropStep{Width: 1, Height: 1}}}}, nil},
		{"zero resize", config.Preset{Steps: []config.Step{{Resize: &config.ResizeStep{Width: 0, Height: 1}}}}, canvas.ErrInvalidDimensions},
		{"bad mode", config.Preset{Steps: []config.Step{{Resize: &config.ResizeStep{Width: 1, Height: 1, Mode: "fill"}}}}, nil},
		{"zero crop", config.Preset{Steps: []config.Step{{Crop: &config.CropStep{Width: 1}}}}, canvas.ErrInvalidDimensions},
		{"zero ratio", config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "a.png", Placement: "middle"}}}}, canvas.ErrInvalidRatio},
		{"bad corner", config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "a.png", Placement: "corner", Ratio: 2, Corner: "22"}}}}, canvas.ErrUnknownCorner},
		{"no image", config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{}}}}, nil},
		{"opacity", config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "a.png", Opacity: 120}}}}, nil},
		{"bad color", config.Preset{Steps: []config.Step{{Background: &config.BackgroundStep{Color: "#zz0000", Width: 1, Height: 1}}}}, nil},
		{"zero background", config.Preset{Steps: []config.Step{{Background: &config.BackgroundStep{Width: 1}}}}, canvas.ErrInvalidDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.preset)
			require.NotNil(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestCompileAll(t *testing.T) {
	recipes, err := CompileAll(map[string]config.Preset{
		"a": {Steps: []config.Step{{Transparent: true}}},
		"b": {Steps: []config.Step{{Rotate: &config.RotateStep{Angle: 10}}}},
	})
	require.Nil(t, err)
	assert.Len(t, recipes, 2)
	assert.Equal(t, "a", recipes["a"].Name)

	_, err = CompileAll(map[string]config.Preset{"a": {}})
	assert.NotNil(t, err)
}

func TestRecipe_Hash(t *testing.T) {
	preset := func(w int, format string) config.Preset {
		return config.Preset{Format: format, Steps: []config.Step{{Resize: &config.ResizeStep{Width: w, Height: 100}}}}
	}

	a := compile(t, preset(100, ""))
	b := compile(t, preset(100, ""))
	c := compile(t, preset(101, ""))
	d := compile(t, preset(100, "png"))
	e := compile(t, config.Preset{Steps: []config.Step{{Resize: &config.ResizeStep{Width: 100, Height: 100, Mode: "outside"}}}})

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, a.HashStr(), b.HashStr())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.NotEqual(t, a.Hash(), d.Hash())
	assert.NotEqual(t, a.Hash(), e.Hash())

	m1 := compile(t, config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "a.png", Placement: "corner", Ratio: 2, Corner: "top-left"}}}})
	m2 := compile(t, config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "a.png", Placement: "corner", Ratio: 2, Corner: "bottom-right"}}}})
	m3 := compile(t, config.Preset{Steps: []config.Step{{Merge: &config.MergeStep{Image: "b.png", Placement: "corner", Ratio: 2, Corner: "top-left"}}}})
	assert.NotEqual(t, m1.Hash(), m2.Hash())
	assert.NotEqual(t, m1.Hash(), m3.Hash())
}

func TestRecipe_FormatFallback(t *testing.T) {
	r := compile(t, config.Preset{Steps: []config.Step{{Transparent: true}}})
	assert.Equal(t, canvas.GIF, r.Format(canvas.GIF))
}

func TestRecipe_Apply(t *testing.T) {
	b := goimage.NewBackend()
	src, err := canvas.NewSolid(b, canvas.RGB(0, 0, 0), 800, 600)
	require.Nil(t, err)
	defer src.Destroy()

	r := compile(t, config.Preset{Steps: []config.Step{
		{Resize: &config.ResizeStep{Width: 400, Height: 400}},
		{Crop: &config.CropStep{Width: 200, Height: 100}},
		{Background: &config.BackgroundStep{Color: "#ff0000", Width: 300, Height: 300}},
	}})

	out, err := r.Apply(context.Background(), src)
	require.Nil(t, err)
	defer out.Destroy()

	assert.Equal(t, 300, out.Width())
	assert.Equal(t, 300, out.Height())
	assert.Equal(t, canvas.RGB(255, 0, 0), pixel(out, 0, 0))
	assert.Equal(t, canvas.RGB(0, 0, 0), pixel(out, 150, 150))
	assert.Equal(t, 800, src.Width(), "source canvas should be untouched")
}

func TestRecipe_ApplyMergeLocal(t *testing.T) {
	b := goimage.NewBackend()
	logo := filepath.Join(t.TempDir(), "logo.png")
	require.Nil(t, os.WriteFile(logo, solidPNG(t, b, canvas.RGB(0, 0, 255), 40, 40), 0644))

	src, err := canvas.NewSolid(b, canvas.White, 100, 100)
	require.Nil(t, err)
	defer src.Destroy()

	r := compile(t, config.Preset{Steps: []config.Step{
		{Merge: &config.MergeStep{Image: logo, Opacity: 100, Placement: "corner", Ratio: 4, Corner: "bottom-right"}},
	}})

	out, err := r.Apply(context.Background(), src)
	require.Nil(t, err)
	defer out.Destroy()

	assert.Equal(t, canvas.RGB(0, 0, 255), pixel(out, 99, 99))
	assert.Equal(t, canvas.White, pixel(out, 0, 0))
	assert.Equal(t, canvas.White, pixel(src, 99, 99), "merge should not modify source")

	// second render uses fetched overlay again
	out2, err := r.Apply(context.Background(), src)
	require.Nil(t, err)
	defer out2.Destroy()
	assert.Equal(t, canvas.RGB(0, 0, 255), pixel(out2, 99, 99))
}

func TestRecipe_ApplyMergeRemote(t *testing.T) {
	defer gock.Off()
	gock.InterceptClient(helpers.HTTPClient())
	defer gock.RestoreClient(helpers.HTTPClient())

	b := goimage.NewBackend()
	gock.New("http://overlay.local").
		Get("/frame").
		Reply(200).
		Body(bytes.NewReader(solidPNG(t, b, canvas.RGB(0, 255, 0), 10, 10)))

	src, err := canvas.NewSolid(b, canvas.White, 100, 50)
	require.Nil(t, err)
	defer src.Destroy()

	r := compile(t, config.Preset{Steps: []config.Step{
		{Merge: &config.MergeStep{Image: "http://overlay.local/frame", Opacity: 100, Placement: "full"}},
	}})

	out, err := r.Apply(context.Background(), src)
	require.Nil(t, err)
	defer out.Destroy()

	// 10x10 overlay fitted into 100x50 is 50x50 centered
	assert.Equal(t, canvas.RGB(0, 255, 0), pixel(out, 50, 25))
	assert.Equal(t, canvas.White, pixel(out, 10, 25))
	assert.True(t, gock.IsDone())
}

func TestRecipe_ApplyMergeMissingOverlay(t *testing.T) {
	b := goimage.NewBackend()
	src, err := canvas.NewSolid(b, canvas.White, 10, 10)
	require.Nil(t, err)
	defer src.Destroy()

	r := compile(t, config.Preset{Steps: []config.Step{
		{Resize: &config.ResizeStep{Width: 5, Height: 5}},
		{Merge: &config.MergeStep{Image: filepath.Join(t.TempDir(), "none.png"), Opacity: 100}},
	}})

	_, err = r.Apply(context.Background(), src)
	assert.NotNil(t, err)
}

func TestRecipe_ApplyCanceled(t *testing.T) {
	b := goimage.NewBackend()
	src, err := canvas.NewSolid(b, canvas.White, 10, 10)
	require.Nil(t, err)
	defer src.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := compile(t, config.Preset{Steps: []config.Step{{Transparent: true}}})
	_, err = r.Apply(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectFormat(t *testing.T) {
	b := goimage.NewBackend()
	png := solidPNG(t, b, canvas.White, 2, 2)

	f, err := detectFormat("logo.gif", nil)
	assert.Nil(t, err)
	assert.Equal(t, canvas.GIF, f)

	f, err = detectFormat("https://cdn.local/logo.jpg?v=2", nil)
	assert.Nil(t, err)
	assert.Equal(t, canvas.JPEG, f)

	f, err = detectFormat("https://cdn.local/logo", png)
	assert.Nil(t, err)
	assert.Equal(t, canvas.PNG, f)

	_, err = detectFormat("logo", []byte("plain text"))
	assert.ErrorIs(t, err, canvas.ErrDecode)
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("#102030")
	assert.Nil(t, err)
	assert.Equal(t, canvas.RGB(0x10, 0x20, 0x30), c)

	c, err = parseColor("")
	assert.Nil(t, err)
	assert.Equal(t, canvas.White, c)

	_, err = parseColor("#12345")
	assert.NotNil(t, err)
}
