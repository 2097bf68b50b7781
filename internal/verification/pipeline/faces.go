package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// DefaultFaceTolerance is the match threshold used when none is given
const DefaultFaceTolerance = 0.6

// ErrNoFaceAnalyzer is returned by VerifyFaces when no face collaborator is configured
var ErrNoFaceAnalyzer = errors.New("pipeline: face analysis not configured")

// VerifyFaces compares the photo on a document with a live photo and checks
// the live photo for liveness. Verification passes only when the faces match
// and the live photo is judged live.
func (o *Orchestrator) VerifyFaces(ctx context.Context, document, live domain.Image, tolerance float64) (*domain.FaceVerification, error) {
	if o.faces == nil {
		return nil, ErrNoFaceAnalyzer
	}
	if tolerance <= 0 {
		tolerance = DefaultFaceTolerance
	}

	cmp, err := o.faces.Compare(ctx, document, live, tolerance)
	if err != nil {
		return nil, fmt.Errorf("face comparison failed: %w", err)
	}
	if cmp == nil {
		return nil, errors.New("face comparison failed: empty response")
	}

	out := &domain.FaceVerification{Comparison: cmp}
	liveness, err := o.faces.Liveness(ctx, live)
	if err != nil {
		o.logger.Debug().Err(err).Msg("live photo liveness unavailable")
	} else {
		out.LivePhotoLiveness = liveness
	}

	out.VerificationPassed = cmp.IsMatch && out.LivePhotoLiveness != nil && out.LivePhotoLiveness.IsLive
	return out, nil
}
