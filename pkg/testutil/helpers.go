package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/pkg/httputil"
)

// Envelope mirrors httputil.Response with the data left undecoded
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
}

// NewHTTPRequest builds a request with body encoded as JSON. A nil body sends none.
func NewHTTPRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewMultipartRequest builds an upload request carrying one file part
func NewMultipartRequest(t *testing.T, method, path, field, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// Serve runs req through h and returns the recorded response
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// AssertStatus checks the status code and prints the body on mismatch
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// DecodeEnvelope parses the response envelope
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "response is not an envelope: %s", rr.Body.String())
	return env
}

// DecodeData requires a successful envelope and decodes its data into target
func DecodeData(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	env := DecodeEnvelope(t, rr)
	require.True(t, env.Success, "unexpected error body: %s", rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, target))
}

// DecodeError requires an error envelope and returns its error body
func DecodeError(t *testing.T, rr *httptest.ResponseRecorder) *httputil.ErrorBody {
	t.Helper()
	env := DecodeEnvelope(t, rr)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, "expected an error body: %s", rr.Body.String())
	return env.Error
}

// RequireEventually polls condition every interval until it holds or timeout passes
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(interval)
	}
}

// SkipIfShort skips integration tests under -short
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
