// Package report renders a ProcessingResult as a human-readable report.
// The text and PDF renderings share one section layout.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

const width = 60

var (
	heavyRule = strings.Repeat("=", width)
	lightRule = strings.Repeat("-", width)
)

// section is one titled block of the report. A blank line in lines starts a
// new paragraph.
type section struct {
	title string
	lines []string
}

// header returns the lines under the report title
func header(r *domain.ProcessingResult) []string {
	return []string{
		"Timestamp: " + r.Timestamp.UTC().Format(time.RFC3339),
		"Document Type: " + strings.ToUpper(string(r.DocumentType)),
		"Overall Status: " + strings.ToUpper(string(r.OverallStatus)),
	}
}

// sections builds the report body in its fixed order: extracted data,
// validation, authenticity, bill verification and face detection
func sections(r *domain.ProcessingResult) []section {
	out := []section{extracted(r), validation(r)}
	if r.AuthenticityCheck != nil {
		out = append(out, authenticity(r.AuthenticityCheck))
	}
	if r.BillVerification != nil && r.BillVerification.Success {
		out = append(out, bill(r.BillVerification))
	}
	if r.FaceDetection != nil {
		out = append(out, face(r.FaceDetection))
	}
	return out
}

func extracted(r *domain.ProcessingResult) section {
	s := section{title: "EXTRACTED INFORMATION"}
	if r.ParsedData.Len() == 0 {
		s.lines = []string{"No data extracted"}
		return s
	}
	for _, k := range r.ParsedData.Keys() {
		v, _ := r.ParsedData.Get(k)
		s.lines = append(s.lines, fmt.Sprintf("%s: %s", titleKey(k), domain.FormatValue(v)))
	}
	return s
}

func validation(r *domain.ProcessingResult) section {
	s := section{title: "VALIDATION RESULTS"}
	v := r.Validation
	if v == nil {
		s.lines = []string{"No validation performed"}
		return s
	}

	s.lines = append(s.lines, fmt.Sprintf("Valid: %t", v.IsValid))
	if len(v.Errors) > 0 {
		s.lines = append(s.lines, "", "Errors:")
		for _, e := range v.Errors {
			s.lines = append(s.lines, "  - "+e)
		}
	}
	if len(v.Warnings) > 0 {
		s.lines = append(s.lines, "", "Warnings:")
		for _, w := range v.Warnings {
			s.lines = append(s.lines, "  - "+w)
		}
	}
	return s
}

func authenticity(a *domain.AuthenticityVerdict) section {
	return section{
		title: "IMAGE AUTHENTICITY CHECK",
		lines: []string{
			"AI Generated: " + yesNo(a.IsAIGenerated),
			fmt.Sprintf("Confidence: %d%%", a.ConfidenceScore),
			"Analysis: " + a.Explanation,
		},
	}
}

func bill(b *domain.BillVerification) section {
	return section{
		title: "BILL VERIFICATION",
		lines: []string{
			fmt.Sprintf("Stated Total: %.2f", b.StatedTotal),
			fmt.Sprintf("Calculated Total: %.2f", b.CalculatedTotal),
			fmt.Sprintf("Total Correct: %t", b.IsTotalCorrect),
			fmt.Sprintf("Discrepancy: %.2f", b.Discrepancy),
		},
	}
}

func face(f *domain.FaceDetection) section {
	s := section{
		title: "FACE DETECTION",
		lines: []string{fmt.Sprintf("Faces Detected: %d", f.FaceCount)},
	}
	if f.Quality != nil {
		quality := "Poor"
		if f.Quality.IsGoodQuality {
			quality = "Good"
		}
		s.lines = append(s.lines, "Face Quality: "+quality)
	}
	if f.Liveness != nil {
		liveness := "Uncertain"
		if f.Liveness.IsLive {
			liveness = "Live"
		}
		s.lines = append(s.lines, "Liveness: "+liveness)
	}
	return s
}

// titleKey turns "father_name" into "Father Name". A letter is upper-cased
// when it follows a non-letter and lower-cased otherwise.
func titleKey(key string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range strings.ReplaceAll(key, "_", " ") {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
