package authenticity

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const maxFrequency = 20

const (
	dctSize     = 512
	lowBand     = 128
	highBandMin = 256

	ratioVerySmooth = 0.01
	ratioSmooth     = 0.05
)

// scoreFrequency flags images whose high-frequency DCT energy is small
// relative to the low-frequency energy
func scoreFrequency(in *sample) int {
	if in.img == nil {
		return 0
	}

	g := image.NewGray(image.Rect(0, 0, dctSize, dctSize))
	draw.BiLinear.Scale(g, g.Bounds(), in.img, in.img.Bounds(), draw.Src, nil)

	coeffs := dct2(g)

	var low, high float64
	for k := 0; k < dctSize; k++ {
		for l := 0; l < dctSize; l++ {
			switch {
			case k < lowBand && l < lowBand:
				low += math.Abs(coeffs[k][l])
			case k >= highBandMin && l >= highBandMin:
				high += math.Abs(coeffs[k][l])
			}
		}
	}

	ratio := high / (low + 1e-10)
	switch {
	case ratio < ratioVerySmooth:
		return 20
	case ratio < ratioSmooth:
		return 10
	default:
		return 0
	}
}

// dct2 computes the orthonormal two-dimensional DCT-II of a square image
func dct2(g *image.Gray) [][]float64 {
	n := g.Bounds().Dx()
	basis := dctBasis(n)

	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		line := make([]float64, n)
		for x := 0; x < n; x++ {
			line[x] = float64(g.Pix[y*g.Stride+x])
		}
		rows[y] = transform(line, basis)
	}

	out := make([][]float64, n)
	for k := range out {
		out[k] = make([]float64, n)
	}
	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		res := transform(col, basis)
		for k := 0; k < n; k++ {
			out[k][x] = res[k]
		}
	}
	return out
}

// dctBasis returns basis[k][i] = a(k) * cos(pi*(2i+1)*k / 2n)
func dctBasis(n int) [][]float64 {
	basis := make([][]float64, n)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		basis[k] = make([]float64, n)
		for i := 0; i < n; i++ {
			basis[k][i] = scale * math.Cos(math.Pi*float64(2*i+1)*float64(k)/float64(2*n))
		}
	}
	return basis
}

func transform(in []float64, basis [][]float64) []float64 {
	out := make([]float64, len(in))
	for k, b := range basis {
		var sum float64
		for i, v := range in {
			sum += v * b[i]
		}
		out[k] = sum
	}
	return out
}
