// Package pipeline runs one document through the fixed verification stages:
// authenticity, extraction, validation, face detection and finalization.
// Each stage is isolated, so a failing stage is recorded on the result and
// the run carries on.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/rules"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// Messages recorded on a ProcessingResult
const (
	msgAuthenticityUnavailable = "Could not perform image authenticity check."
	msgRemoteAuthFallback      = "Remote authenticity check unavailable, used offline analysis: "
	msgAIGenerated             = "Image may be AI-generated."
	msgRemoteExtraction        = "Remote extraction failed: "
	msgNoRecognizer            = "No local text recognizer configured for offline extraction"
	msgLocalOCR                = "Local OCR failed: "
	msgNoData                  = "No data could be extracted from document"
	msgBillMismatch            = "Bill total does not match the sum of line items."
	msgFaceDetection           = "Face detection failed: "
	msgProcessingFailed        = "Processing failed: "
)

// Progress checkpoints reported at stage boundaries
const (
	ProgressAuthenticity = 25
	ProgressExtraction   = 50
	ProgressValidation   = 75
	ProgressDone         = 100
)

// Orchestrator owns the stage sequence. It keeps no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	scorer     Scorer
	rules      *rules.Engine
	extractor  Extractor
	recognizer TextRecognizer
	remoteAuth RemoteAuthenticity
	reviewer   DocumentReviewer
	faces      FaceAnalyzer
	tracker    JobTracker
	logger     *logger.Logger
	now        func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithExtractor sets the structured extraction collaborator
func WithExtractor(e Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithTextRecognizer sets the local recognizer used for offline extraction
func WithTextRecognizer(r TextRecognizer) Option {
	return func(o *Orchestrator) { o.recognizer = r }
}

// WithRemoteAuthenticity sets a remote classifier that is tried before the local scorer
func WithRemoteAuthenticity(r RemoteAuthenticity) Option {
	return func(o *Orchestrator) { o.remoteAuth = r }
}

// WithReviewer sets the collaborator filling gemini_validation
func WithReviewer(r DocumentReviewer) Option {
	return func(o *Orchestrator) { o.reviewer = r }
}

// WithFaceAnalyzer enables the face stage and VerifyFaces
func WithFaceAnalyzer(f FaceAnalyzer) Option {
	return func(o *Orchestrator) { o.faces = f }
}

// WithTracker enables RunJob
func WithTracker(t JobTracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = log }
}

// WithClock overrides the clock stamping results
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator around the offline scorer and the rule engine
func New(scorer Scorer, engine *rules.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		scorer: scorer,
		rules:  engine,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("pipeline")
	return o
}

// progressFunc receives stage boundary checkpoints
type progressFunc func(progress int, message string)

// Run processes one document image and returns its result. It never returns
// nil and never panics; failures are recorded on the result.
func (o *Orchestrator) Run(ctx context.Context, img domain.Image, docType domain.DocumentType, opts domain.Options) *domain.ProcessingResult {
	return o.run(ctx, img, docType, opts, nil)
}

func (o *Orchestrator) run(ctx context.Context, img domain.Image, docType domain.DocumentType, opts domain.Options, progress progressFunc) (result *domain.ProcessingResult) {
	result = domain.NewProcessingResult(docType, o.now().UTC())
	checkpoint := func(p int, msg string) {
		if progress != nil {
			progress(p, msg)
		}
	}

	defer func() {
		if v := recover(); v != nil {
			o.logger.Error().Interface("panic", v).Str("doc_type", string(docType)).Msg("pipeline run failed")
			result.AddError(fmt.Sprintf("%s%v", msgProcessingFailed, v))
			result.OverallStatus = domain.StatusFailed
		}
	}()

	// Step 1: authenticity
	auth := runStage(o.logger, authenticityStage, func() StageResult[*domain.AuthenticityVerdict] {
		return o.authenticity(ctx, img)
	})
	auth.record(result)
	if auth.Value != nil {
		result.AuthenticityCheck = auth.Value
		if auth.Value.IsAIGenerated {
			result.AddWarning(msgAIGenerated)
		}
	}
	checkpoint(ProgressAuthenticity, "Authenticity check complete")

	// Step 2: extraction
	ext := runStage(o.logger, extractionStage, func() StageResult[extraction] {
		return o.extract(ctx, img, docType, opts)
	})
	ext.record(result)
	if ext.Value.fields != nil {
		result.ParsedData = ext.Value.fields
	}
	result.OCRResult = ext.Value.ocr
	result.GeminiValidation = ext.Value.review
	checkpoint(ProgressExtraction, "Extraction complete")

	// Step 3: validation, only with data to validate
	if result.ParsedData.Len() > 0 {
		fields := result.ParsedData
		val := runStage(o.logger, validationStage, func() StageResult[validation] {
			return o.validate(fields, docType)
		})
		val.record(result)
		if report := val.Value.report; report != nil {
			result.Validation = report
			for _, e := range report.Errors {
				result.AddError(e)
			}
			for _, w := range report.Warnings {
				result.AddWarning(w)
			}
		}
		if bill := val.Value.bill; bill != nil {
			result.BillVerification = bill
			if bill.Success && !bill.IsTotalCorrect {
				result.AddError(msgBillMismatch)
			}
		}
	}
	checkpoint(ProgressValidation, "Validation complete")

	// Step 4: face detection, for photo documents only
	if opts.DetectFace && docType.HasPhoto() && o.faces != nil {
		face := runStage(o.logger, faceStage, func() StageResult[*domain.FaceDetection] {
			return o.detectFace(ctx, img)
		})
		face.record(result)
		result.FaceDetection = face.Value
	}

	// Step 5: finalization
	o.finalize(result)
	return result
}

func (o *Orchestrator) finalize(result *domain.ProcessingResult) {
	defer func() {
		if v := recover(); v != nil {
			o.logger.Error().Interface("panic", v).Msg("result finalization failed")
			result.AddError(fmt.Sprintf("%s%v", msgProcessingFailed, v))
			result.OverallStatus = domain.StatusFailed
		}
	}()

	result.OverallStatus = domain.StatusFor(result.Errors, result.Warnings)
	completed := o.now().UTC()
	result.CompletedAt = &completed
}

func (o *Orchestrator) authenticity(ctx context.Context, img domain.Image) StageResult[*domain.AuthenticityVerdict] {
	var out StageResult[*domain.AuthenticityVerdict]

	if o.remoteAuth != nil {
		verdict, err := o.remoteAuth.CheckAuthenticity(ctx, img)
		if err == nil && verdict != nil {
			out.Value = verdict
			return out
		}
		if err == nil {
			err = fmt.Errorf("empty verdict")
		}
		o.logger.Warn().Err(err).Msg("remote authenticity failed, falling back to offline scorer")
		out.Warnings = append(out.Warnings, msgRemoteAuthFallback+err.Error())
	}

	if o.scorer == nil {
		out.Err = authenticityStage.fail(msgAuthenticityUnavailable, fmt.Errorf("no scorer configured"))
		return out
	}
	verdict := o.scorer.Score(img.Data)
	out.Value = &verdict
	return out
}

type extraction struct {
	fields *domain.FieldMap
	ocr    *domain.OCRResult
	review map[string]any
}

func (o *Orchestrator) extract(ctx context.Context, img domain.Image, docType domain.DocumentType, opts domain.Options) StageResult[extraction] {
	var out StageResult[extraction]

	if opts.UseRemoteExtraction && o.extractor != nil {
		res, err := o.extractor.ExtractFields(ctx, img, docType)
		if err == nil && res == nil {
			err = fmt.Errorf("empty response")
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("extractor", o.extractor.Name()).Msg("remote extraction failed")
			out.Value.fields = domain.NewFieldMap()
			out.Value.ocr = &domain.OCRResult{Method: o.extractor.Name(), Success: false, Error: err.Error()}
			out.Err = extractionStage.fail(msgRemoteExtraction+err.Error(), err)
			return out
		}

		fields := res.Fields
		if fields.Len() == 0 && res.RawText != "" {
			fields = o.rules.Extract(res.RawText, docType)
		}
		method := res.Method
		if method == "" {
			method = o.extractor.Name()
		}
		out.Value.fields = rules.Clean(fields)
		out.Value.ocr = &domain.OCRResult{Method: method, Success: true, RawText: res.RawText}

		if o.reviewer != nil {
			review, err := o.reviewer.ReviewDocument(ctx, img, docType)
			if err != nil {
				o.logger.Debug().Err(err).Msg("document review unavailable")
			} else {
				out.Value.review = review
			}
		}
	} else {
		method := nameOf(o.recognizer, "local_ocr")
		if o.recognizer == nil {
			out.Value.ocr = &domain.OCRResult{Method: method, Success: false, Error: msgNoRecognizer}
			out.Err = extractionStage.fail(msgNoRecognizer, nil)
			return out
		}

		text, err := o.recognizer.RecognizeText(ctx, img)
		if err != nil {
			out.Value.ocr = &domain.OCRResult{Method: method, Success: false, Error: err.Error()}
			out.Err = extractionStage.fail(msgLocalOCR+err.Error(), err)
			return out
		}
		out.Value.fields = o.rules.Extract(text, docType)
		out.Value.ocr = &domain.OCRResult{Method: method, Success: true, RawText: text}
	}

	if out.Value.fields.Len() == 0 {
		out.Err = extractionStage.fail(msgNoData, nil)
	}
	return out
}

type validation struct {
	report *domain.ValidationReport
	bill   *domain.BillVerification
}

func (o *Orchestrator) validate(fields *domain.FieldMap, docType domain.DocumentType) StageResult[validation] {
	var out StageResult[validation]

	report := o.rules.Validate(fields, docType)
	out.Value.report = &report

	if docType == domain.DocumentTypeBill {
		out.Value.bill = rules.VerifyBillTotal(fields)
	}
	return out
}

func (o *Orchestrator) detectFace(ctx context.Context, img domain.Image) StageResult[*domain.FaceDetection] {
	var out StageResult[*domain.FaceDetection]

	detection, err := o.faces.Detect(ctx, img)
	if err == nil && detection == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		out.Err = faceStage.fail(msgFaceDetection+err.Error(), err)
		return out
	}

	if quality, err := o.faces.Quality(ctx, img); err == nil {
		detection.Quality = quality
	} else {
		o.logger.Debug().Err(err).Msg("face quality unavailable")
	}
	if liveness, err := o.faces.Liveness(ctx, img); err == nil {
		detection.Liveness = liveness
	} else {
		o.logger.Debug().Err(err).Msg("face liveness unavailable")
	}

	out.Value = detection
	return out
}
