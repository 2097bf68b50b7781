package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/config"
)

// FaceClient calls the face analysis sidecar, which wraps the face
// embedding and liveness models
type FaceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFaceClient creates a client for the sidecar at cfg.URL
func NewFaceClient(cfg config.FaceConfig) *FaceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second // embedding models are slow on CPU
	}
	return &FaceClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the sidecar's common reply wrapper
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Detect locates faces and returns the primary face's encoding
func (c *FaceClient) Detect(ctx context.Context, img domain.Image) (*domain.FaceDetection, error) {
	var out domain.FaceDetection
	if err := c.post(ctx, "detect", nil, &out, upload{"file", img}); err != nil {
		return nil, err
	}
	if out.FaceCount == 0 {
		return nil, fmt.Errorf("no face detected in image")
	}
	return &out, nil
}

// Quality scores the sharpness, brightness and size of the primary face
func (c *FaceClient) Quality(ctx context.Context, img domain.Image) (*domain.FaceQuality, error) {
	var out domain.FaceQuality
	if err := c.post(ctx, "quality", nil, &out, upload{"file", img}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Liveness runs the sidecar's presentation attack heuristics
func (c *FaceClient) Liveness(ctx context.Context, img domain.Image) (*domain.Liveness, error) {
	var out domain.Liveness
	if err := c.post(ctx, "liveness", nil, &out, upload{"file", img}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Compare matches the face in a against the face in b
func (c *FaceClient) Compare(ctx context.Context, a, b domain.Image, tolerance float64) (*domain.FaceComparison, error) {
	var out struct {
		IsMatch              bool    `json:"is_match"`
		FaceDistance         float64 `json:"face_distance"`
		SimilarityPercentage float64 `json:"similarity_percentage"`
		Confidence           string  `json:"confidence"`
	}
	fields := map[string]string{"tolerance": strconv.FormatFloat(tolerance, 'f', -1, 64)}
	if err := c.post(ctx, "compare", fields, &out, upload{"document", a}, upload{"live", b}); err != nil {
		return nil, err
	}
	return &domain.FaceComparison{
		IsMatch:              out.IsMatch,
		Distance:             out.FaceDistance,
		SimilarityPercentage: out.SimilarityPercentage,
		Confidence:           out.Confidence,
	}, nil
}

type upload struct {
	field string
	img   domain.Image
}

func (c *FaceClient) post(ctx context.Context, op string, fields map[string]string, target any, files ...upload) error {
	if c.baseURL == "" {
		return fmt.Errorf("face: service URL not configured")
	}

	// Build multipart request
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		name := f.img.Name
		if name == "" {
			name = "image.bin"
		}
		part, err := writer.CreateFormFile(f.field, name)
		if err != nil {
			return fmt.Errorf("face: create form file: %w", err)
		}
		if _, err := part.Write(f.img.Data); err != nil {
			return fmt.Errorf("face: write image data: %w", err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("face: write %s field: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("face: close multipart writer: %w", err)
	}

	url := c.baseURL + "/api/v1/faces/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("face: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("face: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("face: read response body: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(respBody, &env)

	if resp.StatusCode != http.StatusOK {
		if env.Error != "" {
			return fmt.Errorf("face: %s returned %d: %s", op, resp.StatusCode, env.Error)
		}
		return fmt.Errorf("face: %s returned %d", op, resp.StatusCode)
	}
	if env.Success != nil && !*env.Success {
		if env.Error == "" {
			env.Error = "Unknown error"
		}
		return fmt.Errorf("%s", env.Error)
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("face: parse %s response: %w", op, err)
	}
	return nil
}
