package pipeline

import (
	"context"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Extractor produces structured fields, usually from a cloud model
type Extractor interface {
	ExtractFields(ctx context.Context, img domain.Image, docType domain.DocumentType) (*domain.Extraction, error)
	Name() string
}

// TextRecognizer reads raw text from an image for the regex fallback
type TextRecognizer interface {
	RecognizeText(ctx context.Context, img domain.Image) (string, error)
}

// RemoteAuthenticity is a remote synthetic-image classifier. When configured
// its verdict takes precedence over the local scorer.
type RemoteAuthenticity interface {
	CheckAuthenticity(ctx context.Context, img domain.Image) (*domain.AuthenticityVerdict, error)
}

// DocumentReviewer gives a free-form opinion on document quality and tampering
type DocumentReviewer interface {
	ReviewDocument(ctx context.Context, img domain.Image, docType domain.DocumentType) (map[string]any, error)
}

// FaceAnalyzer detects, grades and compares faces
type FaceAnalyzer interface {
	Detect(ctx context.Context, img domain.Image) (*domain.FaceDetection, error)
	Quality(ctx context.Context, img domain.Image) (*domain.FaceQuality, error)
	Liveness(ctx context.Context, img domain.Image) (*domain.Liveness, error)
	Compare(ctx context.Context, a, b domain.Image, tolerance float64) (*domain.FaceComparison, error)
}

// Scorer is the offline authenticity scorer. It must never fail.
type Scorer interface {
	Score(data []byte) domain.AuthenticityVerdict
}

// JobTracker receives progress checkpoints for a tracked run
type JobTracker interface {
	Start(ctx context.Context, jobID string) (*domain.ProcessingJob, error)
	Advance(ctx context.Context, jobID string, progress int, message string) (*domain.ProcessingJob, error)
	Finish(ctx context.Context, jobID string, status domain.Status, message string) (*domain.ProcessingJob, error)
}

func nameOf(v any, fallback string) string {
	if n, ok := v.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fallback
}
