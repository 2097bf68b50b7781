package authenticity

import (
	"fmt"
	"strings"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Notable thresholds, each below its analyzer's max
const (
	notableExif      = 15
	notableFrequency = 10
	notableHistogram = 10
	notableNoise     = 15
	notableArtifacts = 15
)

const authenticSentence = "This image appears to be authentic with natural characteristics"

type tier struct {
	min     int
	label   string
	verdict string
}

var tiers = []tier{
	{min: 60, label: "High", verdict: "This image strongly shows characteristics of AI generation"},
	{min: 40, label: "Medium", verdict: "This image shows multiple indicators of possible AI generation"},
	{min: 20, label: "Low", verdict: "This image shows some suspicious characteristics"},
	{min: 0, label: "Very Low", verdict: authenticSentence},
}

// Explain renders the findings behind a set of sub-scores as one sentence
func Explain(sub domain.SubScores) string {
	var findings []string
	if sub.Exif >= notableExif {
		findings = append(findings, "missing or suspicious EXIF metadata")
	}
	if sub.Frequency >= notableFrequency {
		findings = append(findings, "unusual frequency domain patterns")
	}
	if sub.Histogram >= notableHistogram {
		findings = append(findings, "unnatural color distribution")
	}
	if sub.Noise >= notableNoise {
		findings = append(findings, "artificial noise characteristics")
	}
	if sub.Artifacts >= notableArtifacts {
		findings = append(findings, "lack of natural JPEG compression artifacts")
	}

	if len(findings) == 0 {
		return authenticSentence + "."
	}

	t := tierFor(sub.Total())
	return fmt.Sprintf("%s. %s confidence based on: %s.", t.verdict, t.label, strings.Join(findings, ", "))
}

func tierFor(total int) tier {
	for _, t := range tiers {
		if total >= t.min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}
