package rules

import (
	"strings"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Extract pulls fields out of raw recognized text using the type's patterns.
// A field with no match is left absent. The result is already cleaned.
func (e *Engine) Extract(rawText string, t domain.DocumentType) *domain.FieldMap {
	fm := domain.NewFieldMap()

	s, ok := e.schemas[t]
	if !ok || strings.TrimSpace(rawText) == "" {
		return fm
	}

	for _, fp := range s.extract {
		if v, ok := fp.find(rawText); ok {
			fm.Set(fp.field, v)
		}
	}
	for _, derive := range s.derive {
		derive(e, rawText, fm)
	}

	return Clean(fm)
}

func (fp fieldPattern) find(text string) (string, bool) {
	for _, re := range fp.patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if len(m) > 1 {
				v = m[1]
			}
			v = strings.TrimSpace(v)
			if fp.normalize != nil {
				v = fp.normalize(v)
			}
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Clean drops fields whose value is nil, empty, whitespace or the literal
// "null". Non-string values pass through unchanged.
func Clean(fm *domain.FieldMap) *domain.FieldMap {
	out := domain.NewFieldMap()
	for _, k := range fm.Keys() {
		v, _ := fm.Get(k)
		switch val := v.(type) {
		case nil:
			continue
		case string:
			trimmed := strings.TrimSpace(val)
			if trimmed == "" || strings.EqualFold(trimmed, "null") {
				continue
			}
			out.Set(k, trimmed)
		default:
			out.Set(k, v)
		}
	}
	return out
}
