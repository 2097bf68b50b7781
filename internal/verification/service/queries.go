package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/pipeline"
	"github.com/docverify/docverify-backend/internal/verification/report"
	"github.com/docverify/docverify-backend/internal/verification/rules"
	"github.com/docverify/docverify-backend/pkg/errors"
)

// Report formats
const (
	FormatText = "text"
	FormatPDF  = "pdf"
)

// ReportResponse carries a text report
type ReportResponse struct {
	DocumentID  string    `json:"document_id"`
	Report      string    `json:"report"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report renders the text report for a processed document
func (s *Service) Report(ctx context.Context, documentID string) (*ReportResponse, error) {
	result, err := s.GetResult(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &ReportResponse{
		DocumentID:  documentID,
		Report:      report.Text(result),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// ReportPDF renders the report for a processed document as a PDF
func (s *Service) ReportPDF(ctx context.Context, documentID string) ([]byte, error) {
	result, err := s.GetResult(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return report.PDF(result, report.DefaultPDFOptions())
}

// ValidateResponse is the outcome of validating caller supplied fields
type ValidateResponse struct {
	DocumentType     domain.DocumentType      `json:"document_type"`
	Validation       domain.ValidationReport  `json:"validation"`
	BillVerification *domain.BillVerification `json:"bill_verification,omitempty"`
}

// Validate runs the rule engine against already extracted fields
func (s *Service) Validate(docType domain.DocumentType, fields *domain.FieldMap) (*ValidateResponse, error) {
	if !docType.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported document type: %s", docType))
	}
	if fields == nil {
		fields = domain.NewFieldMap()
	}

	resp := &ValidateResponse{
		DocumentType: docType,
		Validation:   s.rules.Validate(fields, docType),
	}
	if docType == domain.DocumentTypeBill {
		resp.BillVerification = rules.VerifyBillTotal(fields)
	}
	return resp, nil
}

// TypeInfo describes one supported document type
type TypeInfo struct {
	Type           domain.DocumentType `json:"type"`
	Name           string              `json:"name"`
	RequiredFields []string            `json:"required_fields"`
	HasPhoto       bool                `json:"has_photo"`
	Description    string              `json:"description"`
}

// Types lists the supported document types in display order
func (s *Service) Types() []TypeInfo {
	all := domain.DocumentTypes()
	out := make([]TypeInfo, 0, len(all))
	for _, t := range all {
		out = append(out, TypeInfo{
			Type:           t,
			Name:           t.DisplayName(),
			RequiredFields: s.rules.RequiredFields(t),
			HasPhoto:       t.HasPhoto(),
			Description:    t.DisplayName() + " document",
		})
	}
	return out
}

// FaceVerifyRequest names two uploaded documents to compare
type FaceVerifyRequest struct {
	DocumentImageID string  `json:"document_image_id" validate:"required"`
	LivePhotoID     string  `json:"live_photo_id" validate:"required"`
	Tolerance       float64 `json:"tolerance" validate:"gte=0,lte=1"`
}

// VerifyFaces compares the photo on an uploaded document with an uploaded live photo
func (s *Service) VerifyFaces(ctx context.Context, req FaceVerifyRequest) (*domain.FaceVerification, error) {
	document, err := s.load(ctx, req.DocumentImageID, "document image")
	if err != nil {
		return nil, err
	}
	live, err := s.load(ctx, req.LivePhotoID, "live photo")
	if err != nil {
		return nil, err
	}

	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = s.cfg.FaceTolerance
	}

	verification, err := s.orchestrator.VerifyFaces(ctx, document, live, tolerance)
	if stderrors.Is(err, pipeline.ErrNoFaceAnalyzer) {
		return nil, errors.Unavailable("face verification is not configured")
	}
	if err != nil {
		return nil, errors.Wrap(err, "FACE_VERIFICATION_FAILED", "face verification failed", http.StatusUnprocessableEntity)
	}
	return verification, nil
}
