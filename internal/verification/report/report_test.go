package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

func sampleResult() *domain.ProcessingResult {
	r := domain.NewProcessingResult(domain.DocumentTypePAN, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))
	r.OverallStatus = domain.StatusCompletedWithWarnings
	r.ParsedData.Set("name", "Priya Verma").Set("pan_number", "ABCDE1234F").Set("father_name", "Suresh Verma")
	r.Validation = &domain.ValidationReport{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{"Could not validate date of birth format"},
	}
	r.AuthenticityCheck = &domain.AuthenticityVerdict{
		ConfidenceScore: 33,
		Explanation:     "This image appears to be authentic with natural characteristics.",
	}
	r.FaceDetection = &domain.FaceDetection{
		FaceCount: 1,
		Quality:   &domain.FaceQuality{IsGoodQuality: true},
		Liveness:  &domain.Liveness{IsLive: false},
	}
	return r
}

func TestText_Layout(t *testing.T) {
	want := strings.Join([]string{
		strings.Repeat("=", 60),
		"DOCUMENT VERIFICATION REPORT",
		strings.Repeat("=", 60),
		"Timestamp: 2026-06-15T12:00:00Z",
		"Document Type: PAN",
		"Overall Status: COMPLETED_WITH_WARNINGS",
		"",
		strings.Repeat("-", 60),
		"EXTRACTED INFORMATION",
		strings.Repeat("-", 60),
		"Name: Priya Verma",
		"Pan Number: ABCDE1234F",
		"Father Name: Suresh Verma",
		"",
		strings.Repeat("-", 60),
		"VALIDATION RESULTS",
		strings.Repeat("-", 60),
		"Valid: true",
		"",
		"Warnings:",
		"  - Could not validate date of birth format",
		"",
		strings.Repeat("-", 60),
		"IMAGE AUTHENTICITY CHECK",
		strings.Repeat("-", 60),
		"AI Generated: No",
		"Confidence: 33%",
		"Analysis: This image appears to be authentic with natural characteristics.",
		"",
		strings.Repeat("-", 60),
		"FACE DETECTION",
		strings.Repeat("-", 60),
		"Faces Detected: 1",
		"Face Quality: Good",
		"Liveness: Uncertain",
		"",
		strings.Repeat("=", 60),
		"END OF REPORT",
		strings.Repeat("=", 60),
	}, "\n")

	assert.Equal(t, want, Text(sampleResult()))
}

func TestText_EmptyResult(t *testing.T) {
	r := domain.NewProcessingResult(domain.DocumentTypeAadhaar, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	r.OverallStatus = domain.StatusCompletedWithErrors

	out := Text(r)

	assert.Contains(t, out, "EXTRACTED INFORMATION\n"+strings.Repeat("-", 60)+"\nNo data extracted")
	assert.Contains(t, out, "No validation performed")
	assert.NotContains(t, out, "IMAGE AUTHENTICITY CHECK")
	assert.NotContains(t, out, "BILL VERIFICATION")
	assert.NotContains(t, out, "FACE DETECTION")
	assert.True(t, strings.HasSuffix(out, "END OF REPORT\n"+strings.Repeat("=", 60)))
}

func TestText_SectionOrder(t *testing.T) {
	r := sampleResult()
	r.DocumentType = domain.DocumentTypeBill
	r.BillVerification = &domain.BillVerification{Success: true, StatedTotal: 50, CalculatedTotal: 35.5, Discrepancy: 14.5}
	r.Validation.Errors = []string{"Bill total does not match the sum of line items."}

	out := Text(r)

	order := []string{"EXTRACTED INFORMATION", "VALIDATION RESULTS", "Errors:", "Warnings:", "IMAGE AUTHENTICITY CHECK", "BILL VERIFICATION", "FACE DETECTION", "END OF REPORT"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		require.GreaterOrEqual(t, idx, 0, marker)
		assert.Greater(t, idx, last, marker)
		last = idx
	}
	assert.Contains(t, out, "Calculated Total: 35.50")
	assert.Contains(t, out, "Total Correct: false")
}

func TestText_SkipsUnsuccessfulBillCheck(t *testing.T) {
	r := sampleResult()
	r.BillVerification = &domain.BillVerification{Error: "no line items found"}

	assert.NotContains(t, Text(r), "BILL VERIFICATION")
}

func TestText_Deterministic(t *testing.T) {
	assert.Equal(t, Text(sampleResult()), Text(sampleResult()))
}

func TestTitleKey(t *testing.T) {
	tests := map[string]string{
		"name":           "Name",
		"father_name":    "Father Name",
		"PAN_NUMBER":     "Pan Number",
		"date_of_expiry": "Date Of Expiry",
		"address_line2x": "Address Line2X",
		"":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleKey(in), in)
	}
}

func TestPDF(t *testing.T) {
	r := sampleResult()
	r.ParsedData.Set("name_hindi", "प्रिया")

	out, err := PDF(r, DefaultPDFOptions())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(bytes.TrimSpace(out[len(out)-16:])), "%%EOF")
}

func TestPDF_UncompressedContainsSections(t *testing.T) {
	opts := DefaultPDFOptions()
	opts.Compress = false

	out, err := PDF(sampleResult(), opts)
	require.NoError(t, err)

	for _, title := range []string{"DOCUMENT VERIFICATION REPORT", "EXTRACTED INFORMATION", "VALIDATION RESULTS", "FACE DETECTION"} {
		assert.Contains(t, string(out), title)
	}
}
