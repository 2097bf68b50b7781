package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/config"
)

// maxResponseBytes bounds how much of a Gemini reply is read
const maxResponseBytes = 4 << 20

// headerAPIKey carries the API key so it never appears in request URLs
const headerAPIKey = "x-goog-api-key"

// GeminiClient talks to the Gemini generateContent REST endpoint. One client
// serves extraction, document review and remote authenticity.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeminiClient creates a client from cfg. RequestsPerMinute <= 0 disables
// client-side rate limiting.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second // generation on large scans can take a while
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) CanProcess(docType domain.DocumentType) bool {
	return docType.Valid()
}

// ExtractFields asks the model for the document type's fields as JSON
func (c *GeminiClient) ExtractFields(ctx context.Context, img domain.Image, docType domain.DocumentType) (*domain.Extraction, error) {
	text, err := c.generate(ctx, extractionPrompt(docType), img)
	if err != nil {
		return nil, err
	}

	fields, err := domain.ParseFieldMap([]byte(stripCodeFence(text)))
	if err != nil {
		// the model answered in prose; hand the text to regex extraction
		return &domain.Extraction{RawText: text, Method: c.Name()}, nil
	}
	return &domain.Extraction{Fields: fields, RawText: text, Method: c.Name()}, nil
}

// ReviewDocument asks the model for an opinion on quality and tampering.
// The reply is returned as an opaque bag.
func (c *GeminiClient) ReviewDocument(ctx context.Context, img domain.Image, docType domain.DocumentType) (map[string]any, error) {
	text, err := c.generate(ctx, reviewPrompt(docType), img)
	if err != nil {
		return nil, err
	}

	var review map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &review); err != nil {
		return nil, fmt.Errorf("gemini: parse review: %w", err)
	}
	return review, nil
}

// CheckAuthenticity asks the model whether the image is AI-generated
func (c *GeminiClient) CheckAuthenticity(ctx context.Context, img domain.Image) (*domain.AuthenticityVerdict, error) {
	text, err := c.generate(ctx, authenticityPrompt, img)
	if err != nil {
		return nil, err
	}

	var reply struct {
		IsAIGenerated   bool    `json:"is_ai_generated"`
		ConfidenceScore float64 `json:"confidence_score"`
		Explanation     string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &reply); err != nil {
		return nil, fmt.Errorf("gemini: parse authenticity: %w", err)
	}

	confidence := int(reply.ConfidenceScore + 0.5)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return &domain.AuthenticityVerdict{
		IsAIGenerated:   reply.IsAIGenerated,
		ConfidenceScore: confidence,
		Explanation:     reply.Explanation,
		Method:          domain.MethodRemote,
	}, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, img domain.Image) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: API key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: rate limit wait: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: mimeType(img.Name, img.Data),
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("gemini: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr generateResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return "", fmt.Errorf("gemini: API returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini: API returned %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("gemini: parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: response contained no candidates")
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// stripCodeFence removes a markdown code fence around a JSON reply
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
	} else {
		return text
	}
	if j := strings.Index(text, "```"); j >= 0 {
		text = text[:j]
	}
	return strings.TrimSpace(text)
}

// Wire types for generateContent

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
