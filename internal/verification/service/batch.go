package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/errors"
)

// OptionOverrides changes individual pipeline options. A nil field keeps
// the default from domain.DefaultOptions.
type OptionOverrides struct {
	UseRemoteExtraction *bool `json:"use_remote_extraction,omitempty"`
	DetectFace          *bool `json:"detect_face,omitempty"`
}

// Options applies the overrides to the defaults
func (o OptionOverrides) Options() domain.Options {
	opts := domain.DefaultOptions()
	if o.UseRemoteExtraction != nil {
		opts.UseRemoteExtraction = *o.UseRemoteExtraction
	}
	if o.DetectFace != nil {
		opts.DetectFace = *o.DetectFace
	}
	return opts
}

// BatchItem is one uploaded document to verify in a batch
type BatchItem struct {
	DocumentID   string              `json:"document_id" validate:"required"`
	DocumentType domain.DocumentType `json:"document_type" validate:"required,doctype"`
	Options      OptionOverrides     `json:"options"`
}

// BatchSummary counts batch outcomes. Every item lands in exactly one of
// Successful, WithWarnings and Failed.
type BatchSummary struct {
	Total        int `json:"total"`
	Successful   int `json:"successful"`
	Failed       int `json:"failed"`
	WithWarnings int `json:"with_warnings"`
}

// BatchItemResult is the outcome for one batch item. Exactly one of Result
// and Error is set.
type BatchItemResult struct {
	DocumentID string                   `json:"document_id"`
	Result     *domain.ProcessingResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// BatchResponse is returned by ProcessBatch
type BatchResponse struct {
	Summary   BatchSummary      `json:"summary"`
	Results   []BatchItemResult `json:"results"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProcessBatch runs the pipeline synchronously over several uploaded
// documents. Items run concurrently up to the configured worker count and
// results keep the request order. One item failing does not stop the others.
func (s *Service) ProcessBatch(ctx context.Context, items []BatchItem) (*BatchResponse, error) {
	if len(items) == 0 {
		return nil, errors.BadRequest("batch is empty")
	}

	out := make([]BatchItemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchWorkers)

	for i, item := range items {
		g.Go(func() error {
			out[i] = s.processItem(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BatchResponse{
		Summary:   summarize(out),
		Results:   out,
		Timestamp: s.now().UTC(),
	}, nil
}

func (s *Service) processItem(ctx context.Context, item BatchItem) BatchItemResult {
	res := BatchItemResult{DocumentID: item.DocumentID}
	if !item.DocumentType.Valid() {
		res.Error = "unsupported document type: " + string(item.DocumentType)
		return res
	}

	img, err := s.load(ctx, item.DocumentID, "document")
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", item.DocumentID).Msg("failed to load batch document")
		res.Error = errors.From(err).Message
		return res
	}

	result := s.orchestrator.Run(ctx, img, item.DocumentType, item.Options.Options())
	result.DocumentID = item.DocumentID
	if err := s.results.Put(ctx, item.DocumentID, result); err != nil {
		s.log.Warn().Err(err).Str("document_id", item.DocumentID).Msg("failed to store batch result")
	}
	res.Result = result
	return res
}

func summarize(items []BatchItemResult) BatchSummary {
	sum := BatchSummary{Total: len(items)}
	for _, item := range items {
		if item.Result == nil {
			sum.Failed++
			continue
		}
		switch item.Result.OverallStatus {
		case domain.StatusCompleted:
			sum.Successful++
		case domain.StatusCompletedWithWarnings:
			sum.WithWarnings++
		default:
			sum.Failed++
		}
	}
	return sum
}
