package processor

import (
	"fmt"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

const jsonOnly = "Only return valid JSON. If a field is not found, use null."

var extractionPrompts = map[domain.DocumentType]string{
	domain.DocumentTypeAadhaar: `This is an Indian Aadhaar Card. Extract the following information in JSON format:
{
  "name": "full name",
  "aadhaar_number": "12-digit number (format: XXXX XXXX XXXX)",
  "dob": "date of birth (DD/MM/YYYY)",
  "gender": "Male/Female",
  "address": "full address"
}`,
	domain.DocumentTypePAN: `This is an Indian PAN Card. Extract the following information in JSON format:
{
  "name": "full name",
  "pan_number": "10-character PAN (format: ABCDE1234F)",
  "father_name": "father's name",
  "dob": "date of birth (DD/MM/YYYY)"
}`,
	domain.DocumentTypeDrivingLicense: `This is an Indian Driving License. Extract the following information in JSON format:
{
  "name": "full name",
  "license_number": "license number",
  "dob": "date of birth (DD/MM/YYYY)",
  "issue_date": "issue date",
  "validity": "validity date (DD/MM/YYYY)",
  "address": "address",
  "blood_group": "blood group"
}`,
	domain.DocumentTypePassport: `This is an Indian Passport. Extract the following information in JSON format:
{
  "name": "full name",
  "passport_number": "passport number",
  "dob": "date of birth (DD/MM/YYYY)",
  "issue_date": "date of issue",
  "expiry_date": "date of expiry (DD/MM/YYYY)",
  "place_of_birth": "place of birth",
  "nationality": "nationality"
}`,
	domain.DocumentTypeVoterID: `This is an Indian Voter ID Card. Extract the following information in JSON format:
{
  "name": "full name",
  "voter_id": "voter ID number",
  "dob": "date of birth (DD/MM/YYYY)",
  "gender": "Male/Female",
  "address": "address"
}`,
	domain.DocumentTypeBill: `This is a bill or receipt. Extract the following information in JSON format:
{
  "merchant": "merchant or shop name",
  "date": "bill date (DD/MM/YYYY)",
  "items": [{"name": "item name", "quantity": 1, "price": 0.0, "amount": 0.0}],
  "total_amount": 0.0
}
Amounts must be numbers without currency symbols.`,
}

func extractionPrompt(docType domain.DocumentType) string {
	p, ok := extractionPrompts[docType]
	if !ok {
		p = extractionPrompts[domain.DocumentTypeAadhaar]
	}
	return p + "\n" + jsonOnly
}

func reviewPrompt(docType domain.DocumentType) string {
	name := docType.DisplayName()
	return fmt.Sprintf(`Analyze this %[1]s document image and provide validation:

1. Is the image clear and readable? (quality check)
2. Does it appear to be a genuine document? (authenticity check)
3. Are there any signs of tampering or forgery?
4. Is the document format consistent with official %[1]s documents?
5. Overall confidence score (0-100)

Provide response in JSON format:
{
  "is_clear": true/false,
  "appears_genuine": true/false,
  "tampering_detected": true/false,
  "format_valid": true/false,
  "confidence_score": 0-100,
  "notes": "any additional observations"
}`, name)
}

const authenticityPrompt = `Determine whether this image was generated or heavily manipulated by an AI model
(for example Midjourney, DALL-E or Stable Diffusion) rather than photographed or scanned.

Provide response in JSON format:
{
  "is_ai_generated": true/false,
  "confidence_score": 0-100,
  "explanation": "short explanation of the visual evidence"
}`
