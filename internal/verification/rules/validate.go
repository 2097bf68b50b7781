package rules

import (
	"strings"
	"time"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Accepted date layouts, tried in order. Day and month may be one or two digits.
var dateLayouts = []string{"2/1/2006", "2-1-2006", "2/1/06", "2-1-06"}

var expiryFields = []string{"expiry_date", "date_of_expiry", "validity"}

// Validate checks fm against the schema for t. It is pure: the same input
// always yields the same report.
func (e *Engine) Validate(fm *domain.FieldMap, t domain.DocumentType) domain.ValidationReport {
	r := domain.ValidationReport{
		Errors:   []string{},
		Warnings: []string{},
	}

	s, ok := e.schemas[t]
	if !ok {
		r.Errors = append(r.Errors, "Unsupported document type: "+string(t))
		return r
	}

	allPresent := true
	for _, field := range s.required {
		if isEmpty(fm, field) {
			allPresent = false
			r.Errors = append(r.Errors, "Missing required field: "+field)
		}
	}

	for _, rule := range s.formats {
		v, ok := fm.Get(rule.field)
		if !ok {
			continue
		}
		value := domain.FormatValue(v)
		if rule.stripSpaces {
			value = stripWhitespace(value)
		}
		if !rule.pattern.MatchString(value) {
			r.Errors = append(r.Errors, rule.message)
		}
	}

	if t == domain.DocumentTypeAadhaar {
		if v, ok := fm.String("aadhaar_number"); ok {
			if digits := stripWhitespace(v); isDigits(digits) && len(digits) == 12 && !verhoeffValid(digits) {
				r.Warnings = append(r.Warnings, "Aadhaar number failed checksum verification")
			}
		}
	}

	now := e.now()
	if v, ok := fm.Get("dob"); ok {
		dob, parsed := parseDate(domain.FormatValue(v), now.Location())
		switch {
		case !parsed:
			r.Warnings = append(r.Warnings, "Could not validate date of birth format")
		case dob.After(now):
			r.Errors = append(r.Errors, "Date of birth cannot be in the future")
		}
	}

	for _, field := range expiryFields {
		v, ok := fm.Get(field)
		if !ok {
			continue
		}
		if expiry, parsed := parseDate(domain.FormatValue(v), now.Location()); parsed && expiry.Before(now) {
			r.Warnings = append(r.Warnings, "Document has expired")
			break
		}
	}

	r.IsValid = len(r.Errors) == 0
	r.Details.RequiredFieldsPresent = allPresent
	return r
}

func isEmpty(fm *domain.FieldMap, field string) bool {
	v, ok := fm.Get(field)
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
