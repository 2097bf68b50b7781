package authenticity

const maxArtifacts = 20

const (
	blockSize        = 8
	minArtifactSide  = 16
	blockVarSmooth   = 5.0
	blockVarModerate = 15.0
)

// scoreArtifacts penalizes lossless sources and a top-left block too smooth
// to have gone through lossy compression
func scoreArtifacts(in *sample) int {
	if in.img == nil {
		return 0
	}

	score := 0
	switch in.format {
	case "jpeg":
	case "png":
		score += 10
	default:
		score += 5
	}

	b := in.img.Bounds()
	if b.Dx() < minArtifactSide || b.Dy() < minArtifactSide {
		return score
	}

	values := make([]float64, 0, blockSize*blockSize)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			r, _, _ := rgb8(in.img, b.Min.X+x, b.Min.Y+y)
			values = append(values, float64(r))
		}
	}
	_, std := meanStd(values)

	switch variance := std * std; {
	case variance < blockVarSmooth:
		score += 15
	case variance < blockVarModerate:
		score += 8
	}
	return score
}
