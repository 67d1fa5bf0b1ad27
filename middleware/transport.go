package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the correlation id of every outbound call.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID makes the transport reuse id instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

type loggingTransport struct {
	next http.RoundTripper
	log  logrus.FieldLogger
}

// NewTransport wraps next so that each request carries an X-Request-ID header
// and each round trip is logged. A nil next uses http.DefaultTransport; a nil
// log uses the standard logrus logger.
func NewTransport(next http.RoundTripper, log logrus.FieldLogger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &loggingTransport{next: next, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = RequestID(req.Context())
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	// RoundTrip must not modify the caller's request
	if req.Header.Get(RequestIDHeader) != requestID {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	logger := t.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"host":       req.URL.Host,
		"path":       req.URL.Path,
	})

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logger.WithError(err).WithField("duration", duration).Warn("Request failed")
		return nil, err
	}

	logger = logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": duration,
	})

	switch {
	case resp.StatusCode >= 500:
		logger.Error("Request completed with server error")
	case resp.StatusCode >= 400:
		logger.Warn("Request completed with client error")
	default:
		logger.Debug("Request completed successfully")
	}

	return resp, nil
}
