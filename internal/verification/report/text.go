package report

import (
	"strings"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Text renders r as a plain text report. The output is deterministic for a
// given result.
func Text(r *domain.ProcessingResult) string {
	lines := []string{heavyRule, "DOCUMENT VERIFICATION REPORT", heavyRule}
	lines = append(lines, header(r)...)

	for _, s := range sections(r) {
		lines = append(lines, "", lightRule, s.title, lightRule)
		lines = append(lines, s.lines...)
	}

	lines = append(lines, "", heavyRule, "END OF REPORT", heavyRule)
	return strings.Join(lines, "\n")
}
