// Package service is the application layer of the verification service. It
// owns uploaded documents, launches tracked pipeline runs in the background
// and answers the read side (status, results, reports).
package service

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/jobs"
	"github.com/docverify/docverify-backend/internal/verification/pipeline"
	"github.com/docverify/docverify-backend/internal/verification/rules"
	"github.com/docverify/docverify-backend/internal/verification/storage"
	"github.com/docverify/docverify-backend/pkg/errors"
	"github.com/docverify/docverify-backend/pkg/logger"
)

const (
	msgUploaded       = "Document uploaded successfully"
	msgJobStarted     = "Processing started"
	msgLoadFailed     = "Processing failed: could not load document"
	defaultMaxUpload  = 10 << 20
	defaultJobLimit   = 4
	defaultBatchLimit = 4
)

// EventPublisher announces job lifecycle changes. The events package
// implementation is a no-op when messaging is disabled.
type EventPublisher interface {
	PublishJobStarted(ctx context.Context, job *domain.ProcessingJob, docType domain.DocumentType)
	PublishJobCompleted(ctx context.Context, jobID string, result *domain.ProcessingResult)
	PublishJobFailed(ctx context.Context, jobID, documentID, reason string)
}

// Stores groups the persistence the service depends on
type Stores struct {
	Documents storage.Store[domain.Document]
	Results   storage.Store[domain.ProcessingResult]
	Blobs     storage.DocumentStore
}

// Config holds the service's limits
type Config struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
	MaxConcurrentJobs int
	BatchWorkers      int
	FaceTolerance     float64
}

// Service coordinates uploads, jobs and results
type Service struct {
	orchestrator *pipeline.Orchestrator
	tracker      *jobs.Tracker
	rules        *rules.Engine
	documents    storage.Store[domain.Document]
	results      storage.Store[domain.ProcessingResult]
	blobs        storage.DocumentStore
	events       EventPublisher
	cfg          Config
	jobSlots     *semaphore.Weighted
	wg           sync.WaitGroup
	log          *logger.Logger
	now          func() time.Time
}

// New creates a verification service. events may be nil.
func New(orch *pipeline.Orchestrator, tracker *jobs.Tracker, engine *rules.Engine, stores Stores, events EventPublisher, cfg Config, log *logger.Logger) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = defaultJobLimit
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = defaultBatchLimit
	}
	if cfg.FaceTolerance <= 0 {
		cfg.FaceTolerance = pipeline.DefaultFaceTolerance
	}
	if events == nil {
		events = noopEvents{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		orchestrator: orch,
		tracker:      tracker,
		rules:        engine,
		documents:    stores.Documents,
		results:      stores.Results,
		blobs:        stores.Blobs,
		events:       events,
		cfg:          cfg,
		jobSlots:     semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		log:          log.WithComponent("verification_service"),
		now:          time.Now,
	}
}

// UploadResponse is returned after a document is stored
type UploadResponse struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	Message         string    `json:"message"`
}

// Upload stores a document image and its metadata
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowed(ext) {
		return nil, errors.UnsupportedMediaType("Invalid file type. Allowed: " + strings.Join(s.cfg.AllowedExtensions, ", "))
	}
	if len(data) == 0 {
		return nil, errors.BadRequest("file is empty")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, errors.PayloadTooLarge(fmt.Sprintf("file exceeds the %d byte upload limit", s.cfg.MaxUploadBytes))
	}

	doc := &domain.Document{
		DocumentID:  uuid.New().String(),
		Filename:    filepath.Base(filename),
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		UploadedAt:  s.now().UTC(),
	}
	doc.StorageKey = doc.DocumentID + ext

	if err := s.blobs.Save(ctx, doc.StorageKey, data, doc.ContentType); err != nil {
		return nil, err
	}
	if err := s.documents.Put(ctx, doc.DocumentID, doc); err != nil {
		if derr := s.blobs.Delete(ctx, doc.StorageKey); derr != nil {
			s.log.Warn().Err(derr).Str("document_id", doc.DocumentID).Msg("failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to save document metadata: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.DocumentID).
		Str("filename", doc.Filename).
		Int64("size", doc.Size).
		Msg("document uploaded")

	return &UploadResponse{
		DocumentID:      doc.DocumentID,
		Filename:        doc.Filename,
		UploadTimestamp: doc.UploadedAt,
		Message:         msgUploaded,
	}, nil
}

func (s *Service) allowed(ext string) bool {
	for _, a := range s.cfg.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

// ProcessResponse is returned when a job is queued
type ProcessResponse struct {
	JobID     string        `json:"job_id"`
	Status    domain.Status `json:"status"`
	Message   string        `json:"message"`
	StartedAt time.Time     `json:"started_at"`
}

// StartProcessing queues a tracked pipeline run for an uploaded document and
// returns immediately. The run continues after ctx is cancelled.
func (s *Service) StartProcessing(ctx context.Context, documentID string, docType domain.DocumentType, opts domain.Options) (*ProcessResponse, error) {
	if !docType.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported document type: %s", docType))
	}
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	job, err := s.tracker.Create(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc, err = s.documents.Update(ctx, documentID, func(d *domain.Document) error {
		d.JobID = job.JobID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link job to document: %w", err)
	}

	s.wg.Add(1)
	go s.process(job, *doc, docType, opts)

	return &ProcessResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		Message:   msgJobStarted,
		StartedAt: job.CreatedAt,
	}, nil
}

// process runs one job in the background
func (s *Service) process(job *domain.ProcessingJob, doc domain.Document, docType domain.DocumentType, opts domain.Options) {
	defer s.wg.Done()

	// Detached from the request that queued the job
	ctx := context.Background()
	log := s.log.WithJobID(job.JobID).WithDocumentID(doc.DocumentID)

	if err := s.jobSlots.Acquire(ctx, 1); err != nil {
		log.Error().Err(err).Msg("failed to acquire job slot")
		return
	}
	defer s.jobSlots.Release(1)

	data, err := s.blobs.Load(ctx, doc.StorageKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to load document bytes")
		s.failJob(ctx, job.JobID, doc.DocumentID, docType, msgLoadFailed)
		return
	}

	s.events.PublishJobStarted(ctx, job, docType)

	result, err := s.orchestrator.RunJob(ctx, job.JobID, domain.Image{Name: doc.Filename, Data: data}, docType, opts)
	if result == nil {
		log.Error().Err(err).Msg("job could not be run")
		s.failJob(ctx, job.JobID, doc.DocumentID, docType, "Processing failed: "+errorText(err))
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("job ran but its status could not be recorded")
	}

	result.DocumentID = doc.DocumentID
	if err := s.results.Put(ctx, doc.DocumentID, result); err != nil {
		log.Error().Err(err).Msg("failed to store result")
	}

	if result.OverallStatus == domain.StatusFailed {
		s.events.PublishJobFailed(ctx, job.JobID, doc.DocumentID, lastOr(result.Errors, "Processing failed"))
		return
	}
	s.events.PublishJobCompleted(ctx, job.JobID, result)
}

// failJob records a FAILED result for runs that never reached the pipeline
func (s *Service) failJob(ctx context.Context, jobID, documentID string, docType domain.DocumentType, reason string) {
	now := s.now().UTC()
	result := domain.NewProcessingResult(docType, now)
	result.DocumentID = documentID
	result.AddError(reason)
	result.OverallStatus = domain.StatusFailed
	result.CompletedAt = &now

	if err := s.results.Put(ctx, documentID, result); err != nil {
		s.log.Error().Err(err).Str("document_id", documentID).Msg("failed to store failed result")
	}
	if _, err := s.tracker.Fail(ctx, jobID, reason); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
	s.events.PublishJobFailed(ctx, jobID, documentID, reason)
}

// StatusResponse reports a job's progress
type StatusResponse struct {
	JobID       string        `json:"job_id"`
	Status      domain.Status `json:"status"`
	Progress    int           `json:"progress"`
	Message     string        `json:"message"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// GetStatus returns the current state of a job
func (s *Service) GetStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	job, err := s.tracker.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		JobID:       job.JobID,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.Message,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the latest result for a document. A document whose job
// has not finished yields a StillProcessing error.
func (s *Service) GetResult(ctx context.Context, documentID string) (*domain.ProcessingResult, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var job *domain.ProcessingJob
	if doc.JobID != "" {
		job, err = s.tracker.Get(ctx, doc.JobID)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if job != nil && !job.Status.Terminal() {
			return nil, errors.StillProcessing(string(job.Status))
		}
	}

	result, err := s.results.Get(ctx, documentID)
	if errors.Is(err, errors.ErrNotFound) {
		if job == nil {
			return nil, errors.NotFound("result")
		}
		// The job finished but its result is not written yet
		return nil, errors.StillProcessing(string(job.Status))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a document's bytes, metadata and result
func (s *Service) Delete(ctx context.Context, documentID string) error {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if err := s.results.Delete(ctx, documentID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if err := s.documents.Delete(ctx, documentID); err != nil {
		return err
	}

	s.log.Info().Str("document_id", documentID).Msg("document deleted")
	return nil
}

// Wait blocks until every background job has finished or ctx is done
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load reads a document's metadata and bytes
func (s *Service) load(ctx context.Context, documentID, resource string) (domain.Image, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if errors.Is(err, errors.ErrNotFound) {
		return domain.Image{}, errors.NotFound(resource)
	}
	if err != nil {
		return domain.Image{}, err
	}
	data, err := s.blobs.Load(ctx, doc.StorageKey)
	if err != nil {
		return domain.Image{}, err
	}
	return domain.Image{Name: doc.Filename, Data: data}, nil
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func lastOr(msgs []string, fallback string) string {
	if len(msgs) == 0 {
		return fallback
	}
	return msgs[len(msgs)-1]
}

type noopEvents struct{}

func (noopEvents) PublishJobStarted(context.Context, *domain.ProcessingJob, domain.DocumentType) {}
func (noopEvents) PublishJobCompleted(context.Context, string, *domain.ProcessingResult) {}
func (noopEvents) PublishJobFailed(context.Context, string, string, string) {}
