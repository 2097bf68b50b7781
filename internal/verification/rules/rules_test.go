package rules_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/rules"
)

var fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newEngine() *rules.Engine {
	return rules.NewEngine(rules.WithClock(func() time.Time { return fixedNow }))
}

func TestValidate_RequiredFields(t *testing.T) {
	e := newEngine()

	tests := []struct {
		docType  domain.DocumentType
		required []string
	}{
		{domain.DocumentTypeAadhaar, []string{"name", "aadhaar_number", "dob"}},
		{domain.DocumentTypePAN, []string{"name", "pan_number", "father_name"}},
		{domain.DocumentTypeDrivingLicense, []string{"name", "license_number", "dob"}},
		{domain.DocumentTypePassport, []string{"name", "passport_number", "dob"}},
		{domain.DocumentTypeVoterID, []string{"name", "voter_id"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			assert.Equal(t, tt.required, e.RequiredFields(tt.docType))

			r := e.Validate(domain.NewFieldMap(), tt.docType)
			assert.False(t, r.IsValid)
			assert.False(t, r.Details.RequiredFieldsPresent)
			for _, field := range tt.required {
				assert.Contains(t, r.Errors, "Missing required field: "+field)
			}
		})
	}
}

func TestValidate_MissingFieldReported(t *testing.T) {
	e := newEngine()
	fm := domain.NewFieldMap().Set("name", "Rahul Sharma").Set("dob", "01/01/1990")

	r := e.Validate(fm, domain.DocumentTypeAadhaar)

	assert.False(t, r.IsValid)
	assert.Equal(t, []string{"Missing required field: aadhaar_number"}, r.Errors)
}

func TestValidate_UnsupportedType(t *testing.T) {
	r := newEngine().Validate(domain.NewFieldMap(), domain.DocumentType("ration_card"))

	assert.False(t, r.IsValid)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "Unsupported document type")
}

func TestExtract_AadhaarRoundTrip(t *testing.T) {
	e := newEngine()
	text := "GOVERNMENT OF INDIA\nName: Rahul Sharma\nDOB: 01/01/1990\nMale\n123456789012\n"

	fm := e.Extract(text, domain.DocumentTypeAadhaar)

	number, ok := fm.String("aadhaar_number")
	require.True(t, ok)
	assert.Equal(t, "1234 5678 9012", number)

	name, _ := fm.String("name")
	assert.Equal(t, "Rahul Sharma", name)
	dob, _ := fm.String("dob")
	assert.Equal(t, "01/01/1990", dob)
	gender, _ := fm.String("gender")
	assert.Equal(t, "Male", gender)

	r := e.Validate(fm, domain.DocumentTypeAadhaar)
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors)
	// 123456789012 does not carry a valid Verhoeff check digit
	assert.Equal(t, []string{"Aadhaar number failed checksum verification"}, r.Warnings)
}

func TestValidate_AadhaarChecksumPasses(t *testing.T) {
	fm := domain.NewFieldMap().
		Set("name", "Rahul Sharma").
		Set("aadhaar_number", "2345 6789 0124").
		Set("dob", "01/01/1990")

	r := newEngine().Validate(fm, domain.DocumentTypeAadhaar)

	assert.True(t, r.IsValid)
	assert.True(t, r.Details.RequiredFieldsPresent)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestValidate_FormatErrors(t *testing.T) {
	e := newEngine()

	tests := []struct {
		name    string
		docType domain.DocumentType
		fields  *domain.FieldMap
		want    string
	}{
		{
			name:    "aadhaar too short",
			docType: domain.DocumentTypeAadhaar,
			fields:  domain.NewFieldMap().Set("name", "A B").Set("aadhaar_number", "1234 5678").Set("dob", "01/01/1990"),
			want:    "Invalid Aadhaar number format",
		},
		{
			name:    "pan lowercase",
			docType: domain.DocumentTypePAN,
			fields:  domain.NewFieldMap().Set("name", "A B").Set("pan_number", "abcde1234f").Set("father_name", "C D"),
			want:    "Invalid PAN number format",
		},
		{
			name:    "passport letters",
			docType: domain.DocumentTypePassport,
			fields:  domain.NewFieldMap().Set("name", "A B").Set("passport_number", "AB123456").Set("dob", "01/01/1990"),
			want:    "Invalid passport number format",
		},
		{
			name:    "voter id digits only",
			docType: domain.DocumentTypeVoterID,
			fields:  domain.NewFieldMap().Set("name", "A B").Set("voter_id", "1234567890"),
			want:    "Invalid voter ID format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Validate(tt.fields, tt.docType)
			assert.False(t, r.IsValid)
			assert.True(t, r.Details.RequiredFieldsPresent)
			assert.Equal(t, []string{tt.want}, r.Errors)
		})
	}
}

func TestValidate_FutureDateOfBirth(t *testing.T) {
	tomorrow := fixedNow.AddDate(0, 0, 1).Format("02/01/2006")
	fm := domain.NewFieldMap().
		Set("name", "Rahul Sharma").
		Set("aadhaar_number", "2345 6789 0124").
		Set("dob", tomorrow)

	r := newEngine().Validate(fm, domain.DocumentTypeAadhaar)

	assert.False(t, r.IsValid)
	assert.Equal(t, []string{"Date of birth cannot be in the future"}, r.Errors)
}

func TestValidate_PastDateOfBirth(t *testing.T) {
	past := fixedNow.AddDate(-30, 0, 0).Format("2-1-2006")
	fm := domain.NewFieldMap().
		Set("name", "Rahul Sharma").
		Set("aadhaar_number", "2345 6789 0124").
		Set("dob", past)

	r := newEngine().Validate(fm, domain.DocumentTypeAadhaar)

	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestValidate_UnparseableDateOfBirth(t *testing.T) {
	fm := domain.NewFieldMap().
		Set("name", "Rahul Sharma").
		Set("voter_id", "ABC1234567").
		Set("dob", "first of March")

	r := newEngine().Validate(fm, domain.DocumentTypeVoterID)

	assert.True(t, r.IsValid)
	assert.Equal(t, []string{"Could not validate date of birth format"}, r.Warnings)
}

func TestValidate_ExpiredDocument(t *testing.T) {
	fm := domain.NewFieldMap().
		Set("name", "Rahul Sharma").
		Set("passport_number", "J8369854").
		Set("dob", "01/01/1990").
		Set("expiry_date", "01/01/2020")

	r := newEngine().Validate(fm, domain.DocumentTypePassport)

	assert.True(t, r.IsValid)
	assert.Equal(t, []string{"Document has expired"}, r.Warnings)
}

func TestValidate_Deterministic(t *testing.T) {
	e := newEngine()
	fm := domain.NewFieldMap().Set("name", "Rahul").Set("pan_number", "BAD").Set("dob", "x")

	first := e.Validate(fm, domain.DocumentTypePAN)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Validate(fm, domain.DocumentTypePAN))
	}
}

func TestExtract_PAN(t *testing.T) {
	text := "INCOME TAX DEPARTMENT\nName: Priya Verma\nFather's Name: Suresh Verma\n15/08/1985\nPermanent Account Number\nABCDE1234F\n"

	fm := newEngine().Extract(text, domain.DocumentTypePAN)

	assert.Equal(t, []string{"pan_number", "dob", "name", "father_name"}, fm.Keys())
	name, _ := fm.String("name")
	assert.Equal(t, "Priya Verma", name)
	father, _ := fm.String("father_name")
	assert.Equal(t, "Suresh Verma", father)
	pan, _ := fm.String("pan_number")
	assert.Equal(t, "ABCDE1234F", pan)
}

func TestExtract_BillTotal(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain total", "Item A 100\nItem B 150\nTotal: 250\n", "250"},
		{"grand total wins over subtotal", "Sub Total: 90.00\nTax 10\nGrand Total: Rs. 1,100.50\n", "1100.50"},
		{"currency between label and amount", "TOTAL INR 1,234\n", "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := newEngine().Extract(tt.text, domain.DocumentTypeBill)
			total, ok := fm.String("total_amount")
			require.True(t, ok)
			assert.Equal(t, tt.want, total)
		})
	}
}

func TestExtract_NameStopsAtLabel(t *testing.T) {
	text := "Name: Rahul Sharma DOB 01/01/1990\nABC1234567"

	fm := newEngine().Extract(text, domain.DocumentTypeVoterID)

	name, _ := fm.String("name")
	assert.Equal(t, "Rahul Sharma", name)
	voter, _ := fm.String("voter_id")
	assert.Equal(t, "ABC1234567", voter)
}

func TestExtract_EmptyText(t *testing.T) {
	fm := newEngine().Extract("   \n", domain.DocumentTypeAadhaar)
	assert.Equal(t, 0, fm.Len())
}

func TestExtract_PassportFromMRZ(t *testing.T) {
	line1 := "P<INDSHARMA<<RAHUL<KUMAR"
	line1 += strings.Repeat("<", 44-len(line1))
	line2 := "J8369854<4IND9001011M3001019" + strings.Repeat("<", 15) + "0"
	require.Len(t, line2, 44)

	text := "REPUBLIC OF INDIA\n" + line1 + "\n" + line2 + "\n"

	fm := newEngine().Extract(text, domain.DocumentTypePassport)

	expect := map[string]string{
		"passport_number": "J8369854",
		"name":            "Rahul Kumar Sharma",
		"dob":             "01/01/1990",
		"nationality":     "IND",
		"gender":          "Male",
		"expiry_date":     "01/01/2030",
	}
	for field, want := range expect {
		got, ok := fm.String(field)
		assert.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}

	r := newEngine().Validate(fm, domain.DocumentTypePassport)
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Warnings)
}

func TestExtract_MRZWithBadCheckDigitKeepsPrintedNumber(t *testing.T) {
	line1 := "P<INDSHARMA<<RAHUL"
	line1 += strings.Repeat("<", 44-len(line1))
	line2 := "X1234567<9IND9001011M3001019" + strings.Repeat("<", 15) + "0"
	text := "Passport No.\n" + line1 + "\n" + line2

	fm := newEngine().Extract(text, domain.DocumentTypePassport)

	number, ok := fm.String("passport_number")
	require.True(t, ok)
	assert.Equal(t, "X1234567", number)
	name, _ := fm.String("name")
	assert.Equal(t, "Rahul Sharma", name)
}

func TestClean(t *testing.T) {
	fm := domain.NewFieldMap().
		Set("name", "  Rahul Sharma ").
		Set("empty", "").
		Set("blank", "   ").
		Set("null_string", "NULL").
		Set("missing", nil).
		Set("items", []any{map[string]any{"price": 10.0}}).
		Set("count", 3)

	out := rules.Clean(fm)

	assert.Equal(t, []string{"name", "items", "count"}, out.Keys())
	name, _ := out.String("name")
	assert.Equal(t, "Rahul Sharma", name)
	count, _ := out.Get("count")
	assert.Equal(t, 3, count)
}

func TestVerifyBillTotal(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		wantSuccess bool
		wantCorrect bool
		wantCalc    float64
		wantDiff    float64
		wantError   string
	}{
		{
			name:        "matching total",
			json:        `{"total_amount": "Rs. 1,250.00", "items": [{"name": "Tea", "price": 250, "quantity": 3}, {"name": "Cake", "amount": 500}]}`,
			wantSuccess: true,
			wantCorrect: true,
			wantCalc:    1250,
		},
		{
			name:        "within tolerance",
			json:        `{"total": 30.00, "line_items": [{"price": 10.004}, {"price": 10, "qty": 2}]}`,
			wantSuccess: true,
			wantCorrect: true,
			wantCalc:    30,
		},
		{
			name:        "mismatch",
			json:        `{"grand_total": 100, "items": [{"total": 40}, {"total": 50}]}`,
			wantSuccess: true,
			wantCorrect: false,
			wantCalc:    90,
			wantDiff:    10,
		},
		{
			name:      "no total",
			json:      `{"items": [{"amount": 1}]}`,
			wantError: "no stated total found",
		},
		{
			name:      "no items",
			json:      `{"total_amount": 10}`,
			wantError: "no line items found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, err := domain.ParseFieldMap([]byte(tt.json))
			require.NoError(t, err)

			v := rules.VerifyBillTotal(fm)

			assert.Equal(t, tt.wantSuccess, v.Success)
			assert.Equal(t, tt.wantError, v.Error)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantCorrect, v.IsTotalCorrect)
				assert.InDelta(t, tt.wantCalc, v.CalculatedTotal, 0.001)
				assert.InDelta(t, tt.wantDiff, v.Discrepancy, 0.011)
			}
		})
	}
}

func TestVerifyBillTotal_NativeValues(t *testing.T) {
	fm := domain.NewFieldMap().
		Set("total_amount", json.Number("20")).
		Set("items", []any{
			map[string]any{"price": 5.0, "quantity": 2},
			map[string]any{"amount": "10"},
		})

	v := rules.VerifyBillTotal(fm)

	assert.True(t, v.Success)
	assert.True(t, v.IsTotalCorrect)
	assert.Equal(t, 20.0, v.StatedTotal)
}
