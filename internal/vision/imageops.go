package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ToGray converts img to a single-channel image with bounds starting at 0,0.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Brightness returns the mean intensity of img within [0,1].
func Brightness(img *image.Gray) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(b.Dx()*b.Dy()) / 255
}

// Equalize spreads the histogram of img over the full intensity range.
func Equalize(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	total := b.Dx() * b.Dy()
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}

	var cdf [256]int
	running, cdfMin := 0, 0
	for i, n := range hist {
		running += n
		cdf[i] = running
		if cdfMin == 0 && running > 0 {
			cdfMin = running
		}
	}

	var lut [256]uint8
	if total == cdfMin {
		// uniform image
		for i := range lut {
			lut[i] = uint8(i)
		}
	} else {
		for i := range lut {
			if cdf[i] < cdfMin {
				continue
			}
			lut[i] = uint8((cdf[i] - cdfMin) * 255 / (total - cdfMin))
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: lut[img.GrayAt(x, y).Y]})
		}
	}
	return out
}

// Resize scales the part of img inside region to w×h. A region outside img
// yields a black image.
func Resize(img image.Image, region image.Rectangle, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, region, draw.Src, nil)
	return dst
}

// DecodeImage decodes a JPEG or PNG image.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGB stretches img to w×h RGB for model input.
func toRGB(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// imageToFloat32CHW converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std float32) []float32 {
	resized := toRGB(img, targetW, targetH)
	plane := targetW * targetH
	data := make([]float32, 3*plane)

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			off := resized.PixOffset(x, y)
			idx := y*targetW + x
			data[0*plane+idx] = (float32(resized.Pix[off+0]) - mean) / std // R
			data[1*plane+idx] = (float32(resized.Pix[off+1]) - mean) / std // G
			data[2*plane+idx] = (float32(resized.Pix[off+2]) - mean) / std // B
		}
	}
	return data
}
