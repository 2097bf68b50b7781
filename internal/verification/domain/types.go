package domain

import (
	"errors"
	"fmt"
	"time"
)

// DocumentType represents the type of document being verified
type DocumentType string

const (
	DocumentTypeAadhaar        DocumentType = "aadhaar"
	DocumentTypePAN            DocumentType = "pan"
	DocumentTypeDrivingLicense DocumentType = "driving_license"
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeVoterID        DocumentType = "voter_id"
	// DocumentTypeBill is the only non-identity type. It carries no photo
	// and is checked for total consistency instead of identifier formats.
	DocumentTypeBill DocumentType = "bill"
)

// ErrUnknownDocumentType is returned by ParseDocumentType
var ErrUnknownDocumentType = errors.New("unknown document type")

var documentTypeNames = map[DocumentType]string{
	DocumentTypeAadhaar:        "Aadhaar Card",
	DocumentTypePAN:            "PAN Card",
	DocumentTypeDrivingLicense: "Driving License",
	DocumentTypePassport:       "Passport",
	DocumentTypeVoterID:        "Voter ID",
	DocumentTypeBill:           "Bill / Receipt",
}

// DocumentTypes lists every supported type in display order
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeAadhaar,
		DocumentTypePAN,
		DocumentTypeDrivingLicense,
		DocumentTypePassport,
		DocumentTypeVoterID,
		DocumentTypeBill,
	}
}

// ParseDocumentType converts user input into a DocumentType
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
	}
	return t, nil
}

// Valid reports whether t is a supported type
func (t DocumentType) Valid() bool {
	_, ok := documentTypeNames[t]
	return ok
}

// IsIdentity reports whether t is one of the identity documents
func (t DocumentType) IsIdentity() bool {
	return t.Valid() && t != DocumentTypeBill
}

// HasPhoto reports whether documents of this type carry a photograph of the holder
func (t DocumentType) HasPhoto() bool {
	return t.IsIdentity()
}

// DisplayName returns a human readable name
func (t DocumentType) DisplayName() string {
	if name, ok := documentTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// Status is shared by jobs and results
type Status string

const (
	StatusPending               Status = "pending"
	StatusProcessing            Status = "processing"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusCompletedWithErrors   Status = "completed_with_errors"
	StatusFailed                Status = "failed"
)

// Terminal reports whether no further transition can leave s
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithWarnings, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// StatusFor derives the overall status of a finished run from its messages.
func StatusFor(errs, warnings []string) Status {
	switch {
	case len(errs) > 0:
		return StatusCompletedWithErrors
	case len(warnings) > 0:
		return StatusCompletedWithWarnings
	default:
		return StatusCompleted
	}
}

// Image is a document image held in memory for the duration of a run
type Image struct {
	Name string
	Data []byte
}

// Options tunes a single pipeline run
type Options struct {
	UseRemoteExtraction bool `json:"use_remote_extraction"`
	DetectFace          bool `json:"detect_face"`
}

// DefaultOptions enables every stage
func DefaultOptions() Options {
	return Options{UseRemoteExtraction: true, DetectFace: true}
}

// ValidationReport is the rule engine's verdict on a FieldMap
type ValidationReport struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings"`
	Details  ValidationDetails `json:"details"`
}

// ValidationDetails carries secondary facts about a validation
type ValidationDetails struct {
	RequiredFieldsPresent bool `json:"required_fields_present"`
}

// SubScores holds each authenticity analyzer's bounded contribution
type SubScores struct {
	Exif      int `json:"exif"`
	Frequency int `json:"frequency"`
	Histogram int `json:"histogram"`
	Noise     int `json:"noise"`
	Artifacts int `json:"artifacts"`
}

// Total sums the sub-scores
func (s SubScores) Total() int {
	return s.Exif + s.Frequency + s.Histogram + s.Noise + s.Artifacts
}

// Authenticity methods
const (
	MethodOfflineHeuristic = "offline_heuristic"
	MethodRemote           = "remote"
)

// AuthenticityVerdict estimates whether an image was synthetically generated
type AuthenticityVerdict struct {
	IsAIGenerated   bool       `json:"is_ai_generated"`
	ConfidenceScore int        `json:"confidence_score"`
	Explanation     string     `json:"explanation"`
	SubScores       *SubScores `json:"sub_scores,omitempty"`
	TotalScore      int        `json:"total_score"`
	Method          string     `json:"method"`
}

// Extraction is what an extraction collaborator returns. Fields may be nil
// when the collaborator only produced raw text.
type Extraction struct {
	Fields  *FieldMap
	RawText string
	Method  string
}

// OCRResult describes how parsed_data was obtained
type OCRResult struct {
	Method  string `json:"method"`
	Success bool   `json:"success"`
	RawText string `json:"raw_text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FaceLocation is a bounding box in pixel coordinates
type FaceLocation struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// FaceDetection is the face stage output attached to a result
type FaceDetection struct {
	FaceCount int            `json:"face_count"`
	Encoding  []float64      `json:"encoding,omitempty"`
	Locations []FaceLocation `json:"face_locations,omitempty"`
	Quality   *FaceQuality   `json:"quality,omitempty"`
	Liveness  *Liveness      `json:"liveness,omitempty"`
}

// FaceQuality is reported by the face collaborator. Metrics are not interpreted.
type FaceQuality struct {
	IsGoodQuality bool           `json:"is_good_quality"`
	Metrics       map[string]any `json:"metrics,omitempty"`
}

// Liveness is reported by the face collaborator. Metrics are not interpreted.
type Liveness struct {
	IsLive     bool           `json:"is_live"`
	Confidence string         `json:"confidence,omitempty"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

// FaceComparison is the outcome of matching two faces
type FaceComparison struct {
	IsMatch              bool    `json:"is_match"`
	Distance             float64 `json:"distance"`
	SimilarityPercentage float64 `json:"similarity_percentage"`
	Confidence           string  `json:"confidence"`
}

// FaceVerification compares a document photo with a live photo
type FaceVerification struct {
	Comparison         *FaceComparison `json:"comparison"`
	LivePhotoLiveness  *Liveness       `json:"live_photo_liveness,omitempty"`
	VerificationPassed bool            `json:"verification_passed"`
}

// BillVerification checks a stated total against its line items
type BillVerification struct {
	Success         bool    `json:"success"`
	StatedTotal     float64 `json:"stated_total"`
	CalculatedTotal float64 `json:"calculated_total"`
	IsTotalCorrect  bool    `json:"is_total_correct"`
	Discrepancy     float64 `json:"discrepancy"`
	Error           string  `json:"error,omitempty"`
}

// ProcessingResult is owned by exactly one pipeline run. Errors and warnings
// only grow while the run is active; the record is not modified afterwards.
type ProcessingResult struct {
	DocumentID        string               `json:"document_id,omitempty"`
	Timestamp         time.Time            `json:"timestamp"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	DocumentType      DocumentType         `json:"document_type"`
	OverallStatus     Status               `json:"overall_status"`
	ParsedData        *FieldMap            `json:"parsed_data"`
	OCRResult         *OCRResult           `json:"ocr_result,omitempty"`
	Validation        *ValidationReport    `json:"validation,omitempty"`
	FaceDetection     *FaceDetection       `json:"face_detection,omitempty"`
	AuthenticityCheck *AuthenticityVerdict `json:"authenticity_check,omitempty"`
	BillVerification  *BillVerification    `json:"bill_verification,omitempty"`
	GeminiValidation  map[string]any       `json:"gemini_validation,omitempty"`
	Errors            []string             `json:"errors"`
	Warnings          []string             `json:"warnings"`
}

// NewProcessingResult returns an empty result in the processing state
func NewProcessingResult(docType DocumentType, now time.Time) *ProcessingResult {
	return &ProcessingResult{
		Timestamp:     now,
		DocumentType:  docType,
		OverallStatus: StatusProcessing,
		ParsedData:    NewFieldMap(),
		Errors:        []string{},
		Warnings:      []string{},
	}
}

// AddError appends an error message
func (r *ProcessingResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddWarning appends a warning message
func (r *ProcessingResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ProcessingJob tracks one asynchronous run for one document
type ProcessingJob struct {
	JobID       string     `json:"job_id"`
	DocumentID  string     `json:"document_id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Document is the metadata of an uploaded image. JobID is the most recent
// processing job started for it.
type Document struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	JobID       string    `json:"job_id,omitempty"`
}
