package rules

import (
	"regexp"
	"strings"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// fieldPattern extracts one field. Patterns are tried in order; the first
// match with a non-empty value wins.
type fieldPattern struct {
	field     string
	patterns  []*regexp.Regexp
	normalize func(string) string
}

// formatRule rejects a present field whose value does not match pattern
type formatRule struct {
	field       string
	pattern     *regexp.Regexp
	stripSpaces bool
	message     string
}

type schema struct {
	required []string
	extract  []fieldPattern
	formats  []formatRule
	// derive fills fields that do not come from a single pattern
	derive []func(e *Engine, text string, fm *domain.FieldMap)
}

var (
	dobPattern = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)

	// Name labels are case ambiguous on scanned cards. The line-anchored
	// form avoids picking up "Father's Name" before the holder's name.
	namePrimary   = regexp.MustCompile(`(?im)^[ \t]*(?:name|नाम)(?:[ \t]*/[ \t]*name)?[ \t]*[:\-]?\s*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)
	nameAlternate = regexp.MustCompile(`(?i)(?:name|नाम)[ \t]*[:\-]?\s*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)
	fatherPattern = regexp.MustCompile(`(?i)(?:father'?s?[ \t]*name|father)[ \t]*[:\-]?\s*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)

	aadhaarSpaced  = regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)
	aadhaarCompact = regexp.MustCompile(`\b\d{12}\b`)
	panPattern     = regexp.MustCompile(`[A-Z]{5}[0-9]{4}[A-Z]`)
	licensePrimary = regexp.MustCompile(`[A-Z]{2}[-/]?\d{2}[-/]?\d{4}[-/]?\d{7}`)
	licenseAlt     = regexp.MustCompile(`[A-Z]{2}\d{13,16}`)
	passportPat    = regexp.MustCompile(`[A-Z]\d{7}`)
	voterPattern   = regexp.MustCompile(`[A-Z]{3}\d{7}`)

	grandTotalPattern = regexp.MustCompile(`(?i)\bgrand[ \t]+total\b[^\d\n]{0,12}([\d,]+(?:\.\d+)?)`)
	totalPattern      = regexp.MustCompile(`(?i)\btotal\b[^\d\n]{0,12}([\d,]+(?:\.\d+)?)`)
)

func defaultSchemas() map[domain.DocumentType]*schema {
	name := fieldPattern{field: "name", patterns: []*regexp.Regexp{namePrimary, nameAlternate}, normalize: trimLabelWords}
	dob := fieldPattern{field: "dob", patterns: []*regexp.Regexp{dobPattern}}

	return map[domain.DocumentType]*schema{
		domain.DocumentTypeAadhaar: {
			required: []string{"name", "aadhaar_number", "dob"},
			extract: []fieldPattern{
				{field: "aadhaar_number", patterns: []*regexp.Regexp{aadhaarSpaced, aadhaarCompact}, normalize: formatAadhaar},
				dob,
				name,
			},
			formats: []formatRule{
				{field: "aadhaar_number", pattern: regexp.MustCompile(`^\d{12}$`), stripSpaces: true, message: "Invalid Aadhaar number format"},
			},
			derive: []func(*Engine, string, *domain.FieldMap){deriveGender},
		},
		domain.DocumentTypePAN: {
			required: []string{"name", "pan_number", "father_name"},
			extract: []fieldPattern{
				{field: "pan_number", patterns: []*regexp.Regexp{panPattern}},
				dob,
				name,
				{field: "father_name", patterns: []*regexp.Regexp{fatherPattern}, normalize: trimLabelWords},
			},
			formats: []formatRule{
				{field: "pan_number", pattern: regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`), message: "Invalid PAN number format"},
			},
		},
		domain.DocumentTypeDrivingLicense: {
			required: []string{"name", "license_number", "dob"},
			extract: []fieldPattern{
				{field: "license_number", patterns: []*regexp.Regexp{licensePrimary, licenseAlt}},
				dob,
				name,
			},
			formats: []formatRule{
				{
					field:       "license_number",
					pattern:     regexp.MustCompile(`^(?:[A-Z]{2}[-/]?\d{2}[-/]?\d{4}[-/]?\d{7}|[A-Z]{2}\d{13,16})$`),
					stripSpaces: true,
					message:     "Invalid driving license number format",
				},
			},
		},
		domain.DocumentTypePassport: {
			required: []string{"name", "passport_number", "dob"},
			extract: []fieldPattern{
				{field: "passport_number", patterns: []*regexp.Regexp{passportPat}},
				dob,
				name,
			},
			formats: []formatRule{
				{field: "passport_number", pattern: regexp.MustCompile(`^[A-Z]\d{7}$`), message: "Invalid passport number format"},
			},
			derive: []func(*Engine, string, *domain.FieldMap){deriveFromMRZ},
		},
		domain.DocumentTypeVoterID: {
			required: []string{"name", "voter_id"},
			extract: []fieldPattern{
				{field: "voter_id", patterns: []*regexp.Regexp{voterPattern}},
				dob,
				name,
			},
			formats: []formatRule{
				{field: "voter_id", pattern: regexp.MustCompile(`^[A-Z]{3}\d{7}$`), message: "Invalid voter ID format"},
			},
		},
		domain.DocumentTypeBill: {
			extract: []fieldPattern{
				{field: "total_amount", patterns: []*regexp.Regexp{grandTotalPattern, totalPattern}, normalize: stripCommas},
			},
		},
	}
}

// formatAadhaar regroups a 12 digit number as "XXXX XXXX XXXX"
func formatAadhaar(s string) string {
	digits := stripWhitespace(s)
	if len(digits) != 12 {
		return digits
	}
	return digits[:4] + " " + digits[4:8] + " " + digits[8:]
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

// labelWords end a captured name. OCR often puts the next label on the same line.
var labelWords = map[string]bool{
	"dob": true, "date": true, "birth": true, "year": true, "yob": true,
	"gender": true, "sex": true, "male": true, "female": true,
	"father": true, "father's": true, "address": true, "signature": true,
	"nationality": true, "issue": true, "valid": true, "validity": true,
}

func trimLabelWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if labelWords[strings.ToLower(w)] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func deriveGender(_ *Engine, text string, fm *domain.FieldMap) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "female") || strings.Contains(text, "महिला"):
		fm.Set("gender", "Female")
	case strings.Contains(lower, "male") || strings.Contains(text, "पुरुष"):
		fm.Set("gender", "Male")
	}
}
