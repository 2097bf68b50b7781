// Package httputil holds the response envelope, request decoding and the
// middleware shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/docverify/docverify-backend/pkg/errors"
)

// maxJSONBody caps JSON request bodies; uploads go through multipart instead
const maxJSONBody = 1 << 20

// Response is the envelope every JSON endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error half of the envelope
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// JSON sends data in the envelope. Success follows the status class.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	})
}

// Accepted sends a 202 with data
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// Error renders err. Errors that are not an *errors.AppError become a generic
// 500 so internal text never reaches the client. A 202 "still processing"
// error keeps Success false.
func Error(w http.ResponseWriter, err error) {
	appErr := errors.From(err)
	write(w, appErr.StatusCode, Response{
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// Attachment sends raw bytes as a downloadable file
func Attachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// DecodeJSON decodes a JSON request body into v. Empty, oversized and
// malformed bodies are bad requests.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.BadRequest("request body is empty")
		}
		return errors.BadRequest("invalid JSON body").WithDetails(map[string]string{"body": err.Error()})
	}
	return nil
}
