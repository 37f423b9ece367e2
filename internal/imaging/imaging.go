// Package imaging holds the pixel operations of the archival stages:
// painting composition from a color image and an alpha mask, and avatar
// sheet splitting.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"gfres/internal/fsutil"
)

// PaintingSize is the edge length of every composited painting.
const PaintingSize = 2048

// Resample scales src to size×size with Catmull-Rom interpolation.
func Resample(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Composite builds a PaintingSize square painting whose color comes from
// col and whose alpha comes from mask.
func Composite(col, mask image.Image) *image.NRGBA {
	return CompositeSize(col, mask, PaintingSize)
}

// CompositeSize resamples both inputs to size×size independently, then
// takes RGB from col and alpha from mask. The alpha of col is discarded
// before resampling, so translucent color pixels keep their RGB. A grayscale
// mask has no alpha channel, so its luminance is used instead.
func CompositeSize(col, mask image.Image, size int) *image.NRGBA {
	c := Resample(opaque(col), size)
	m := Resample(mask, size)
	luminance := isGray(mask.ColorModel())

	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(out.Pix); i += 4 {
		// c is fully opaque, so its premultiplied RGB is the straight RGB.
		out.Pix[i] = c.Pix[i]
		out.Pix[i+1] = c.Pix[i+1]
		out.Pix[i+2] = c.Pix[i+2]
		if luminance {
			out.Pix[i+3] = m.Pix[i]
		} else {
			out.Pix[i+3] = m.Pix[i+3]
		}
	}
	return out
}

// opaque copies the straight RGB of src into an image with alpha 255.
func opaque(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var c color.NRGBA
			switch s := src.(type) {
			case *image.NRGBA:
				c = s.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			case *image.NRGBA64:
				p := s.NRGBA64At(b.Min.X+x, b.Min.Y+y)
				c = color.NRGBA{R: uint8(p.R >> 8), G: uint8(p.G >> 8), B: uint8(p.B >> 8)}
			default:
				c = color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			}
			c.A = 0xff
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}

func isGray(model color.Model) bool {
	return model == color.GrayModel || model == color.Gray16Model
}

// Split cuts an avatar sheet into its left (normal) and right (broken)
// halves. Both halves are width/2 wide; an odd last column is dropped.
func Split(sheet image.Image) (normal, broken *image.NRGBA) {
	b := sheet.Bounds()
	half := b.Dx() / 2
	rect := image.Rect(0, 0, half, b.Dy())

	normal = image.NewNRGBA(rect)
	xdraw.Draw(normal, rect, sheet, b.Min, xdraw.Src)

	broken = image.NewNRGBA(rect)
	xdraw.Draw(broken, rect, sheet, image.Pt(b.Min.X+half, b.Min.Y), xdraw.Src)
	return normal, broken
}

func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// SavePNG encodes img at maximum compression and replaces path atomically.
func SavePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes())
}
