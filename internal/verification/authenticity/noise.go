package authenticity

import (
	"math"
)

const maxNoise = 25

const (
	noiseLow        = 2.0
	noiseHigh       = 20.0
	noiseUniformity = 0.5

	// sigma of a 5 tap Gaussian when none is given: 0.3*((5-1)*0.5-1)+0.8
	blurSigma  = 1.1
	blurRadius = 2
)

// scoreNoise measures the high-pass residual of the luma channel. Too little
// noise, too much noise, and noise that is uniform across quadrants all score.
func scoreNoise(in *sample) int {
	if in.img == nil {
		return 0
	}

	g := toGray(in.img)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}

	blur := gaussianBlur(g.Pix, w, h, g.Stride)

	residual := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := int(g.Pix[y*g.Stride+x]) - int(blur[y*w+x])
			if d < 0 {
				d = 0
			}
			residual[y*w+x] = float64(d)
		}
	}

	score := 0
	_, std := meanStd(residual)
	switch {
	case std < noiseLow:
		score += 15
	case std > noiseHigh:
		score += 10
	}

	if w >= 2 && h >= 2 {
		hw, hh := w/2, h/2
		quadrants := [][4]int{
			{0, 0, hw, hh},
			{hw, 0, w, hh},
			{0, hh, hw, h},
			{hw, hh, w, h},
		}
		stds := make([]float64, 0, len(quadrants))
		for _, q := range quadrants {
			_, s := meanStd(region(residual, w, q))
			stds = append(stds, s)
		}
		if _, spread := meanStd(stds); spread < noiseUniformity {
			score += 10
		}
	}
	return score
}

func region(values []float64, stride int, r [4]int) []float64 {
	out := make([]float64, 0, (r[2]-r[0])*(r[3]-r[1]))
	for y := r[1]; y < r[3]; y++ {
		out = append(out, values[y*stride+r[0]:y*stride+r[2]]...)
	}
	return out
}

// gaussianBlur applies a separable 5x5 Gaussian with reflect-101 borders and
// rounds back to 8 bits
func gaussianBlur(pix []uint8, w, h, stride int) []uint8 {
	kernel := gaussianKernel(blurRadius, blurSigma)

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for i, k := range kernel {
				sx := reflect101(x+i-blurRadius, w)
				sum += k * float64(pix[y*stride+sx])
			}
			tmp[y*w+x] = sum
		}
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for i, k := range kernel {
				sy := reflect101(y+i-blurRadius, h)
				sum += k * tmp[sy*w+x]
			}
			out[y*w+x] = uint8(math.Min(255, math.Max(0, math.Round(sum))))
		}
	}
	return out
}

func gaussianKernel(radius int, sigma float64) []float64 {
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 maps i into [0, n) mirroring around the edge pixels (dcb|abcd|cba)
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
