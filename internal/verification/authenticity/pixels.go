package authenticity

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// toGray converts img to 8-bit luma at its native resolution
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// rgb8 returns the 8-bit red, green and blue values of img at (x, y)
func rgb8(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

// meanStd returns the population mean and standard deviation of values
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// fitPixels downscales img, keeping its aspect ratio, so that it holds at
// most maxPixels pixels. Smaller images are returned unchanged.
func fitPixels(img image.Image, maxPixels int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w*h <= maxPixels {
		return img
	}

	f := math.Sqrt(float64(maxPixels) / float64(w*h))
	nw := max(1, int(float64(w)*f))
	nh := max(1, int(float64(h)*f))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
