package imaging

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCompositeUniform(t *testing.T) {
	col := uniformNRGBA(40, 60, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	mask := uniformNRGBA(30, 30, color.NRGBA{A: 128})

	out := CompositeSize(col, mask, 64)
	require.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())

	for _, p := range []image.Point{{0, 0}, {63, 0}, {0, 63}, {63, 63}, {32, 32}} {
		got := out.NRGBAAt(p.X, p.Y)
		assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 128}, got, "pixel %v", p)
	}
}

func TestCompositeGrayMaskUsesLuminance(t *testing.T) {
	col := uniformNRGBA(16, 16, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	mask := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range mask.Pix {
		mask.Pix[i] = 77
	}

	out := CompositeSize(col, mask, 16)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 77}, out.NRGBAAt(8, 8))
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 77}, out.NRGBAAt(0, 15))
}

func TestCompositeKeepsHalves(t *testing.T) {
	// Left half opaque, right half transparent in the mask; color differs
	// top and bottom. Same size so no interpolation blurs the corners.
	col := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	mask := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if y < 16 {
				col.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				col.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
			}
			if x < 16 {
				mask.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}

	out := CompositeSize(col, mask, 32)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 0}, out.NRGBAAt(31, 0))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(0, 31))
	assert.Equal(t, color.NRGBA{B: 255, A: 0}, out.NRGBAAt(31, 31))
}

func TestCompositeDefaultSize(t *testing.T) {
	out := Composite(uniformNRGBA(4, 4, color.NRGBA{A: 255}), uniformNRGBA(4, 4, color.NRGBA{A: 255}))
	assert.Equal(t, PaintingSize, out.Bounds().Dx())
	assert.Equal(t, PaintingSize, out.Bounds().Dy())
}

func TestCompositeIgnoresColorAlpha(t *testing.T) {
	mask := uniformNRGBA(8, 8, color.NRGBA{A: 255})
	for _, alpha := range []uint8{0, 3, 128} {
		col := uniformNRGBA(8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: alpha})

		out := CompositeSize(col, mask, 16)
		for _, p := range []image.Point{{0, 0}, {15, 15}, {8, 8}} {
			assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(p.X, p.Y), "color alpha %d, pixel %v", alpha, p)
		}
	}
}

func TestCompositeAlphaRamp(t *testing.T) {
	col := uniformNRGBA(100, 40, color.NRGBA{R: 12, G: 34, B: 56, A: 255})
	mask := image.NewNRGBA(image.Rect(0, 0, 256, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 256; x++ {
			mask.SetNRGBA(x, y, color.NRGBA{A: uint8(x)})
		}
	}

	const size = 64
	out := CompositeSize(col, mask, size)
	resampled := Resample(mask, size)

	points := []image.Point{{0, 0}, {size - 1, 0}, {0, size - 1}, {size - 1, size - 1}, {size / 2, size / 2}}
	for _, p := range points {
		got := out.NRGBAAt(p.X, p.Y)
		assert.Equal(t, resampled.RGBAAt(p.X, p.Y).A, got.A, "alpha at %v", p)
		assert.Equal(t, color.NRGBA{R: 12, G: 34, B: 56, A: got.A}, got, "color at %v", p)
	}

	left := out.NRGBAAt(0, size/2).A
	center := out.NRGBAAt(size/2, size/2).A
	right := out.NRGBAAt(size-1, size/2).A
	assert.Less(t, left, center)
	assert.Less(t, center, right)
	assert.InDelta(t, 128, int(center), 8)
}

func TestSplit(t *testing.T) {
	sheet := image.NewNRGBA(image.Rect(0, 0, 9, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 9; x++ {
			sheet.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 40), B: 7, A: 255})
		}
	}

	normal, broken := Split(sheet)
	require.Equal(t, image.Rect(0, 0, 4, 4), normal.Bounds())
	require.Equal(t, image.Rect(0, 0, 4, 4), broken.Bounds())

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, sheet.NRGBAAt(x, y), normal.NRGBAAt(x, y))
			assert.Equal(t, sheet.NRGBAAt(x+4, y), broken.NRGBAAt(x, y))
		}
	}
}

func TestSplitOffsetBounds(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 10, 2))
	base.SetNRGBA(6, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	sub := base.SubImage(image.Rect(2, 0, 10, 2))

	_, broken := Split(sub)
	require.Equal(t, image.Rect(0, 0, 4, 2), broken.Bounds())
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, broken.NRGBAAt(0, 1))
}

func TestSaveAndLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ak47", "normal.png")
	img := uniformNRGBA(3, 2, color.NRGBA{R: 9, G: 8, B: 7, A: 6})

	require.NoError(t, SavePNG(path, img))
	loaded, err := LoadPNG(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), loaded.Bounds())
	assert.Equal(t, color.NRGBA{R: 9, G: 8, B: 7, A: 6}, color.NRGBAModel.Convert(loaded.At(1, 1)))

	_, err = LoadPNG(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
