// Package authenticity estimates whether a document image was synthetically
// generated, using pixel statistics and metadata only.
package authenticity

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// AIThreshold is the total score at or above which an image is classified as
// AI-generated
const AIThreshold = 40

// confidenceScale maps a total score onto 0..100
const confidenceScale = 120.0

const (
	// maxDecodePixels matches the decompression bomb limit of common imaging
	// libraries. Larger images are not decoded at all.
	maxDecodePixels = 89_478_485

	// maxWorkingPixels bounds the buffers the pixel analyzers allocate
	maxWorkingPixels = 4096 * 4096
)

// sample is the decoded input shared by all analyzers. img is nil when the
// bytes could not be decoded; format is "" in that case.
type sample struct {
	data   []byte
	format string
	img    image.Image
}

type analyzer struct {
	name string
	max  int
	run  func(*sample) int
}

// Scorer runs the offline heuristic analyzers. It has no mutable state and is
// safe for concurrent use.
type Scorer struct {
	analyzers []analyzer
	log       *logger.Logger
}

// NewScorer creates a scorer with the five built-in analyzers
func NewScorer(log *logger.Logger) *Scorer {
	if log == nil {
		log = logger.Nop()
	}
	return &Scorer{
		analyzers: []analyzer{
			{name: "exif", max: maxExif, run: scoreMetadata},
			{name: "frequency", max: maxFrequency, run: scoreFrequency},
			{name: "histogram", max: maxHistogram, run: scoreHistogram},
			{name: "noise", max: maxNoise, run: scoreNoise},
			{name: "artifacts", max: maxArtifacts, run: scoreArtifacts},
		},
		log: log.WithComponent("authenticity"),
	}
}

// Score analyzes an encoded image. It never fails: an analyzer that cannot
// read the image contributes zero.
func (s *Scorer) Score(data []byte) domain.AuthenticityVerdict {
	in := s.decode(data)

	scores := make([]int, len(s.analyzers))
	for i, a := range s.analyzers {
		scores[i] = s.runAnalyzer(a, in)
	}

	sub := domain.SubScores{
		Exif:      scores[0],
		Frequency: scores[1],
		Histogram: scores[2],
		Noise:     scores[3],
		Artifacts: scores[4],
	}
	return Classify(sub)
}

// decode reads the image header first so that an oversized image is never
// decompressed. Images within the budget but above the working size are
// downscaled before analysis.
func (s *Scorer) decode(data []byte) *sample {
	in := &sample{data: data}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		s.log.Debug().Err(err).Msg("image could not be decoded, pixel analyzers will score zero")
		return in
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxDecodePixels {
		s.log.Warn().
			Int("width", cfg.Width).
			Int("height", cfg.Height).
			Msg("image exceeds the pixel budget, pixel analyzers will score zero")
		return in
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.log.Debug().Err(err).Str("format", format).Msg("image could not be decoded, pixel analyzers will score zero")
		return in
	}
	in.img = fitPixels(img, maxWorkingPixels)
	in.format = format
	return in
}

func (s *Scorer) runAnalyzer(a analyzer, in *sample) (score int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Str("analyzer", a.name).Interface("panic", r).Msg("analyzer panicked, scoring zero")
			score = 0
		}
	}()

	score = a.run(in)
	if score < 0 {
		return 0
	}
	if score > a.max {
		return a.max
	}
	return score
}

// Classify turns sub-scores into a verdict. It is deterministic.
func Classify(sub domain.SubScores) domain.AuthenticityVerdict {
	total := sub.Total()
	confidence := int(math.Round(float64(total) / confidenceScale * 100))
	if confidence > 100 {
		confidence = 100
	}

	return domain.AuthenticityVerdict{
		IsAIGenerated:   total >= AIThreshold,
		ConfidenceScore: confidence,
		Explanation:     Explain(sub),
		SubScores:       &sub,
		TotalScore:      total,
		Method:          domain.MethodOfflineHeuristic,
	}
}
