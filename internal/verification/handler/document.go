package handler

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/service"
	"github.com/docverify/docverify-backend/pkg/errors"
	"github.com/docverify/docverify-backend/pkg/httputil"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// multipartOverhead leaves room for form boundaries and headers
const multipartOverhead = 1 << 20

var registerOnce sync.Once

func registerValidations() {
	registerOnce.Do(func() {
		_ = httputil.RegisterCustomValidation("doctype", func(fl validator.FieldLevel) bool {
			return domain.DocumentType(fl.Field().String()).Valid()
		})
	})
}

// DocumentHandler handles document endpoints
type DocumentHandler struct {
	service   *service.Service
	maxUpload int64
	logger    *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(svc *service.Service, maxUpload int64, log *logger.Logger) *DocumentHandler {
	registerValidations()
	return &DocumentHandler{
		service:   svc,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// Upload handles POST /documents/upload with a multipart "file" field
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, errors.PayloadTooLarge("file exceeds the upload limit"))
			return
		}
		httputil.Error(w, errors.BadRequest("missing file in request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httputil.Error(w, errors.BadRequest("failed to read uploaded file"))
		return
	}

	resp, err := h.service.Upload(r.Context(), header.Filename, data)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// ProcessRequest starts a pipeline run for an uploaded document
type ProcessRequest struct {
	DocumentID   string `json:"document_id" validate:"required"`
	DocumentType string `json:"document_type" validate:"required,doctype"`
	service.OptionOverrides
}

// Process handles POST /documents/process
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	resp, err := h.service.StartProcessing(r.Context(), req.DocumentID, domain.DocumentType(req.DocumentType), req.Options())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Accepted(w, resp)
}

// BatchRequest lists uploaded documents to verify synchronously
type BatchRequest struct {
	Documents []service.BatchItem `json:"documents" validate:"required,min=1,max=50,dive"`
}

// Batch handles POST /documents/batch
func (h *DocumentHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	resp, err := h.service.ProcessBatch(r.Context(), req.Documents)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Status handles GET /documents/status/{job_id}
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Result handles GET /documents/results/{document_id}
func (h *DocumentHandler) Result(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetResult(r.Context(), chi.URLParam(r, "document_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Report handles GET /documents/report/{document_id}. ?format=pdf returns a
// PDF attachment instead of the JSON wrapped text report.
func (h *DocumentHandler) Report(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", service.FormatText:
		resp, err := h.service.Report(r.Context(), documentID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, resp)
	case service.FormatPDF:
		pdf, err := h.service.ReportPDF(r.Context(), documentID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.Attachment(w, "application/pdf", "verification-"+documentID+".pdf", pdf)
	default:
		httputil.Error(w, errors.BadRequest("unsupported report format: "+format))
	}
}

// Delete handles DELETE /documents/{document_id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")

	if err := h.service.Delete(r.Context(), documentID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"message":     "Document deleted successfully",
		"document_id": documentID,
	})
}

// ValidateRequest carries fields to check without running the pipeline
type ValidateRequest struct {
	DocumentData *domain.FieldMap `json:"document_data" validate:"required"`
	DocumentType string           `json:"document_type" validate:"required,doctype"`
}

// Validate handles POST /documents/validate
func (h *DocumentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	resp, err := h.service.Validate(domain.DocumentType(req.DocumentType), req.DocumentData)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Types handles GET /documents/types
func (h *DocumentHandler) Types(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.service.Types())
}

// VerifyFaces handles POST /face/verify
func (h *DocumentHandler) VerifyFaces(w http.ResponseWriter, r *http.Request) {
	var req service.FaceVerifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	resp, err := h.service.VerifyFaces(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}
