package rules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// td3Length is the line length of a passport MRZ (ICAO 9303 TD3, 2 lines x 44 chars)
const td3Length = 44

// mrzFields is what a TD3 zone yields, already formatted the way the
// printed page would show it.
type mrzFields struct {
	documentNumber string
	surname        string
	givenNames     string
	nationality    string
	dob            string
	gender         string
	expiry         string
}

// deriveFromMRZ fills passport fields the printed-text patterns missed
func deriveFromMRZ(e *Engine, text string, fm *domain.FieldMap) {
	mrz, ok := findTD3(text, e.now().Year())
	if !ok {
		return
	}

	if !fm.Has("passport_number") && mrz.documentNumber != "" {
		fm.Set("passport_number", mrz.documentNumber)
	}
	if !fm.Has("name") {
		if name := strings.TrimSpace(mrz.givenNames + " " + mrz.surname); name != "" {
			fm.Set("name", name)
		}
	}
	setIfMissing(fm, "dob", mrz.dob)
	setIfMissing(fm, "nationality", mrz.nationality)
	setIfMissing(fm, "gender", mrz.gender)
	setIfMissing(fm, "expiry_date", mrz.expiry)
}

func setIfMissing(fm *domain.FieldMap, key, value string) {
	if value != "" && !fm.Has(key) {
		fm.Set(key, value)
	}
}

// findTD3 locates two consecutive MRZ lines in OCR text. OCR tends to insert
// spaces into the filler runs, so whitespace is dropped before matching.
func findTD3(text string, currentYear int) (mrzFields, bool) {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.ToUpper(stripWhitespace(raw))
		if len(line) >= td3Length-4 && strings.Contains(line, "<") {
			lines = append(lines, line)
		}
	}

	for i := 0; i+1 < len(lines); i++ {
		if strings.HasPrefix(lines[i], "P") {
			return parseTD3(lines[i], lines[i+1], currentYear), true
		}
	}
	return mrzFields{}, false
}

// parseTD3 parses a passport MRZ.
// Line 1: P<ISSUER SURNAME<<GIVEN<NAMES
// Line 2: DOC_NUMBER(0-8) CHECK(9) NATIONALITY(10-12) DOB(13-18) CHECK(19)
// SEX(20) EXPIRY(21-26) CHECK(27)
func parseTD3(line1, line2 string, currentYear int) mrzFields {
	line1 = padLine(line1, td3Length)
	line2 = padLine(line2, td3Length)

	var f mrzFields

	nameParts := strings.SplitN(line1[5:], "<<", 2)
	f.surname = titleCase(cleanMRZName(nameParts[0]))
	if len(nameParts) == 2 {
		f.givenNames = titleCase(cleanMRZName(nameParts[1]))
	}

	// The document number is only trusted when its check digit verifies
	if number := line2[0:9]; isDigit(line2[9]) && icaoCheckDigit(number) == int(line2[9]-'0') {
		f.documentNumber = cleanMRZ(number)
	}

	f.nationality = cleanMRZ(line2[10:13])

	if dob := line2[13:19]; isValidMRZDate(dob) {
		f.dob = formatMRZDate(dob, currentYear, false)
	}

	switch line2[20] {
	case 'M':
		f.gender = "Male"
	case 'F':
		f.gender = "Female"
	}

	if expiry := line2[21:27]; isValidMRZDate(expiry) {
		f.expiry = formatMRZDate(expiry, currentYear, true)
	}

	return f
}

// formatMRZDate turns YYMMDD into DD/MM/YYYY. Birth years later than the
// current year belong to the previous century; expiry years never do.
func formatMRZDate(yymmdd string, currentYear int, expiry bool) string {
	yy := int(yymmdd[0]-'0')*10 + int(yymmdd[1]-'0')
	year := 2000 + yy
	if !expiry && year > currentYear {
		year -= 100
	}
	return fmt.Sprintf("%s/%s/%d", yymmdd[4:6], yymmdd[2:4], year)
}

func padLine(line string, length int) string {
	if len(line) >= length {
		return line[:length]
	}
	return line + strings.Repeat("<", length-len(line))
}

func cleanMRZ(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "<", ""))
}

func cleanMRZName(s string) string {
	cleaned := strings.TrimRight(s, "< ")
	cleaned = strings.ReplaceAll(cleaned, "<", " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isValidMRZDate(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
