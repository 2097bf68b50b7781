package authenticity

import "math"

const maxHistogram = 15

const (
	entropyHigh     = 7.5
	entropyElevated = 7.0
	entropyUniform  = 0.1
)

// scoreHistogram flags colour distributions that are close to uniform
func scoreHistogram(in *sample) int {
	if in.img == nil {
		return 0
	}

	var hist [3][256]float64
	b := in.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := rgb8(in.img, x, y)
			hist[0][r]++
			hist[1][g]++
			hist[2][bl]++
		}
	}

	total := float64(b.Dx() * b.Dy())
	if total == 0 {
		return 0
	}

	entropies := make([]float64, 3)
	for c := range hist {
		var h float64
		for _, count := range hist[c] {
			if count == 0 {
				continue
			}
			p := count / total
			h -= p * math.Log2(p)
		}
		entropies[c] = h
	}

	mean, std := meanStd(entropies)

	score := 0
	switch {
	case mean > entropyHigh:
		score += 15
	case mean > entropyElevated:
		score += 8
	}
	if std < entropyUniform {
		score += 5
	}
	return score
}
