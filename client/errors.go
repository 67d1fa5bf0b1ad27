package client

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Fallback messages used when an error response carries no readable body.
const (
	FallbackUnknown = "Unknown error"
	FallbackUpload  = "Upload failed"
	FallbackFrame   = "Frame fetch failed"
	FallbackHealth  = "Health check failed"
)

// APIError is the only error kind returned by Client operations. It covers
// HTTP error statuses, transport failures and undecodable responses alike.
// StatusCode is zero when no response was received.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(op string, status int, err error, message string) *APIError {
	return &APIError{
		Op:         op,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// errorMessage turns an error response body into the message surfaced to
// callers. A body that is not JSON yields fallback. A JSON body without a
// usable detail yields "HTTP <status>".
func errorMessage(status int, body []byte, fallback string) string {
	detail, ok := parseDetail(body)
	if !ok {
		detail = fallback
	}
	if detail == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return detail
}

// parseDetail extracts the detail field of a {"detail": ...} error body. ok is
// false only when the body is not valid JSON.
func parseDetail(body []byte) (detail string, ok bool) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", false
	}

	obj, isObj := doc.(map[string]any)
	if !isObj {
		return "", true
	}

	switch d := obj["detail"].(type) {
	case nil:
		return "", true
	case string:
		return d, true
	case bool:
		if !d {
			return "", true
		}
	case float64:
		if d == 0 {
			return "", true
		}
	case []any:
		// FastAPI validation errors: [{"loc": [...], "msg": "...", "type": "..."}]
		var msgs []string
		for _, item := range d {
			if m, isMap := item.(map[string]any); isMap {
				if msg, isStr := m["msg"].(string); isStr && msg != "" {
					msgs = append(msgs, msg)
				}
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; "), true
		}
	}

	raw, err := json.Marshal(obj["detail"])
	if err != nil {
		return "", true
	}
	return string(bytes.TrimSpace(raw)), true
}
