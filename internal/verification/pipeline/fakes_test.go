package pipeline_test

import (
	"context"
	"errors"
	"sync"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

type fakeScorer struct {
	verdict domain.AuthenticityVerdict
	panics  bool
	calls   int
}

func (f *fakeScorer) Score([]byte) domain.AuthenticityVerdict {
	f.calls++
	if f.panics {
		panic("decoder exploded")
	}
	return f.verdict
}

func authentic() *fakeScorer {
	return &fakeScorer{verdict: domain.AuthenticityVerdict{
		ConfidenceScore: 10,
		Explanation:     "This image appears to be authentic with natural characteristics.",
		SubScores:       &domain.SubScores{Exif: 10},
		TotalScore:      10,
		Method:          domain.MethodOfflineHeuristic,
	}}
}

type fakeExtractor struct {
	res *domain.Extraction
	err error
}

func (f *fakeExtractor) Name() string { return "fake-cloud" }

func (f *fakeExtractor) ExtractFields(context.Context, domain.Image, domain.DocumentType) (*domain.Extraction, error) {
	return f.res, f.err
}

func fieldsExtractor(fm *domain.FieldMap) *fakeExtractor {
	return &fakeExtractor{res: &domain.Extraction{Fields: fm}}
}

type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) Name() string { return "fake-ocr" }

func (f *fakeRecognizer) RecognizeText(context.Context, domain.Image) (string, error) {
	return f.text, f.err
}

type fakeRemoteAuth struct {
	verdict *domain.AuthenticityVerdict
	err     error
}

func (f *fakeRemoteAuth) CheckAuthenticity(context.Context, domain.Image) (*domain.AuthenticityVerdict, error) {
	return f.verdict, f.err
}

type fakeReviewer struct {
	review map[string]any
	err    error
}

func (f *fakeReviewer) ReviewDocument(context.Context, domain.Image, domain.DocumentType) (map[string]any, error) {
	return f.review, f.err
}

type fakeFaces struct {
	detectErr   error
	detectPanic bool
	live        bool
	livenessErr error
	match       bool
	compareErr  error

	mu          sync.Mutex
	detectCalls int
	tolerance   float64
}

func (f *fakeFaces) Detect(context.Context, domain.Image) (*domain.FaceDetection, error) {
	f.mu.Lock()
	f.detectCalls++
	f.mu.Unlock()
	if f.detectPanic {
		panic("model not loaded")
	}
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return &domain.FaceDetection{FaceCount: 1, Locations: []domain.FaceLocation{{Top: 10, Right: 90, Bottom: 110, Left: 20}}}, nil
}

func (f *fakeFaces) Quality(context.Context, domain.Image) (*domain.FaceQuality, error) {
	return &domain.FaceQuality{IsGoodQuality: true}, nil
}

func (f *fakeFaces) Liveness(context.Context, domain.Image) (*domain.Liveness, error) {
	if f.livenessErr != nil {
		return nil, f.livenessErr
	}
	return &domain.Liveness{IsLive: f.live, Confidence: "medium"}, nil
}

func (f *fakeFaces) Compare(_ context.Context, _, _ domain.Image, tolerance float64) (*domain.FaceComparison, error) {
	f.mu.Lock()
	f.tolerance = tolerance
	f.mu.Unlock()
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	distance := 0.7
	if f.match {
		distance = 0.3
	}
	return &domain.FaceComparison{IsMatch: f.match, Distance: distance, SimilarityPercentage: (1 - distance) * 100, Confidence: "medium"}, nil
}

// recordingTracker captures the checkpoints a tracked run reports
type recordingTracker struct {
	startErr error
	started  bool
	progress []int
	status   domain.Status
	message  string
}

func (r *recordingTracker) Start(_ context.Context, jobID string) (*domain.ProcessingJob, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.started = true
	return &domain.ProcessingJob{JobID: jobID, Status: domain.StatusProcessing}, nil
}

func (r *recordingTracker) Advance(_ context.Context, jobID string, progress int, _ string) (*domain.ProcessingJob, error) {
	if !r.started {
		return nil, errors.New("advanced before start")
	}
	r.progress = append(r.progress, progress)
	return &domain.ProcessingJob{JobID: jobID, Progress: progress}, nil
}

func (r *recordingTracker) Finish(_ context.Context, jobID string, status domain.Status, message string) (*domain.ProcessingJob, error) {
	r.progress = append(r.progress, 100)
	r.status = status
	r.message = message
	return &domain.ProcessingJob{JobID: jobID, Status: status, Progress: 100}, nil
}
