package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/config"
)

func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-1.5-flash",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
}

var jpegImage = domain.Image{Name: "card.jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}}

func TestGemini_ExtractFields(t *testing.T) {
	var captured generateRequest
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, geminiReply("```json\n{\"name\": \"Priya Verma\", \"pan_number\": \"ABCDE1234F\", \"father_name\": null}\n```"))
	})

	res, err := c.ExtractFields(context.Background(), jpegImage, domain.DocumentTypePAN)
	require.NoError(t, err)
	require.NotNil(t, res.Fields)
	assert.Equal(t, []string{"name", "pan_number", "father_name"}, res.Fields.Keys())
	assert.Equal(t, "gemini", res.Method)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "PAN Card")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	assert.NotEmpty(t, parts[1].InlineData.Data)
}

func TestGemini_ExtractFieldsProseFallsBackToRawText(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply("Name: Rahul Sharma\nDOB: 01/01/1990"))
	})

	res, err := c.ExtractFields(context.Background(), jpegImage, domain.DocumentTypeAadhaar)
	require.NoError(t, err)
	assert.Nil(t, res.Fields)
	assert.Contains(t, res.RawText, "Rahul Sharma")
}

func TestGemini_APIError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"code": 429, "message": "Resource has been exhausted"}}`)
	})

	_, err := c.ExtractFields(context.Background(), jpegImage, domain.DocumentTypeAadhaar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "Resource has been exhausted")
}

func TestGemini_NoCandidates(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	})

	_, err := c.CheckAuthenticity(context.Background(), jpegImage)
	assert.ErrorContains(t, err, "no candidates")
}

func TestGemini_CheckAuthenticity(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply(`{"is_ai_generated": true, "confidence_score": 87.6, "explanation": "Uniform skin texture"}`))
	})

	v, err := c.CheckAuthenticity(context.Background(), jpegImage)
	require.NoError(t, err)
	assert.True(t, v.IsAIGenerated)
	assert.Equal(t, 88, v.ConfidenceScore)
	assert.Equal(t, domain.MethodRemote, v.Method)
	assert.Nil(t, v.SubScores)
}

func TestGemini_ReviewDocument(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply("```\n{\"is_clear\": true, \"appears_genuine\": false, \"confidence_score\": 40}\n```"))
	})

	review, err := c.ReviewDocument(context.Background(), jpegImage, domain.DocumentTypeVoterID)
	require.NoError(t, err)
	assert.Equal(t, true, review["is_clear"])
	assert.Equal(t, false, review["appears_genuine"])
}

func TestGemini_MissingKey(t *testing.T) {
	c := NewGeminiClient(config.GeminiConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.ExtractFields(context.Background(), jpegImage, domain.DocumentTypePAN)
	assert.ErrorContains(t, err, "API key not configured")
}

func TestGemini_TransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewGeminiClient(config.GeminiConfig{
		APIKey:  "secret-key-123",
		Model:   "gemini-1.5-flash",
		BaseURL: srv.URL,
		Timeout: time.Second,
	})
	_, err := c.ExtractFields(context.Background(), jpegImage, domain.DocumentTypePAN)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gemini: request failed")
	assert.NotContains(t, err.Error(), "secret-key-123")
}

func TestGemini_RateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, geminiReply(`{}`))
	})
	c.limiter.SetLimit(1.0 / 3600)

	_, err := c.ReviewDocument(context.Background(), jpegImage, domain.DocumentTypePAN)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ReviewDocument(ctx, jpegImage, domain.DocumentTypePAN)
	assert.ErrorContains(t, err, "rate limit")
	assert.Equal(t, int32(1), calls.Load())
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"{\"a\": 1}":                      "{\"a\": 1}",
		"```json\n{\"a\": 1}\n```":        "{\"a\": 1}",
		"Here you go:\n```\n{}\n```\nBye": "{}",
		"  ```json {\"b\":2}":             "{\"b\":2}",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFence(in), in)
	}
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeType("x.bin", []byte{0xFF, 0xD8, 0xFF, 0x00}))
	assert.Equal(t, "image/png", mimeType("x.bin", []byte{0x89, 'P', 'N', 'G', 0x0D}))
	assert.Equal(t, "image/tiff", mimeType("scan.TIFF", []byte("II*\x00")))
	assert.True(t, strings.HasPrefix(mimeType("", []byte("plain text")), "text/plain"))
}
