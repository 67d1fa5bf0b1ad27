package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/videochat/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the host root of a locally running backend.
	DefaultBaseURL = "http://localhost:8002"
	// DefaultAPIPrefix is prepended to every versioned API path.
	DefaultAPIPrefix = "/api/v1"

	defaultHistoryLimit = 50
	defaultMaxResults   = 10
)

// Client is a typed wrapper around the video-analysis REST API. Each method
// performs exactly one HTTP request. A Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiPrefix  string
	httpClient *http.Client
	timeout    time.Duration
	log        logrus.FieldLogger
	limiter    *rate.Limiter
	metrics    *Metrics
	userAgent  string
}

// New creates a client for the backend rooted at baseURL. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiPrefix: DefaultAPIPrefix,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Default transport tags and logs every round trip
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: middleware.NewTransport(http.DefaultTransport, c.log),
		}
	}

	return c
}

// BaseURL returns the host root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) apiURL(path string) string {
	return c.baseURL + c.apiPrefix + path
}

func (c *Client) rootURL(path string) string {
	return c.baseURL + path
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// send executes req and returns the fully read body of a 2xx response. Any
// other outcome is reported as an *APIError whose message follows the
// detail/fallback rules of errorMessage.
func (c *Client) send(ctx context.Context, op, fallback string, req *http.Request) (*response, error) {
	// Apply context timeout if not already set
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if req.Body != nil {
				req.Body.Close()
			}
			return nil, newAPIError(op, 0, errors.Wrap(err, "rate limit wait"), err.Error())
		}
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	fields := logrus.Fields{
		"op":     op,
		"method": req.Method,
		"path":   req.URL.Path,
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(op, 0, time.Since(start))
		c.log.WithFields(fields).WithError(err).Debug("Backend request failed")
		return nil, newAPIError(op, 0, errors.Wrap(err, op), err.Error())
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observe(op, resp.StatusCode, elapsed)

	fields["status"] = resp.StatusCode
	fields["duration"] = elapsed
	c.log.WithFields(fields).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(op, resp.StatusCode, nil, errorMessage(resp.StatusCode, body, fallback))
	}
	if readErr != nil {
		return nil, newAPIError(op, resp.StatusCode, errors.Wrap(readErr, "read response body"), readErr.Error())
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
	}, nil
}

// doJSON sends in (when non-nil) as a JSON body and decodes the response into
// out (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, fallback, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return newAPIError(op, 0, errors.Wrap(err, "encode request"), err.Error())
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return newAPIError(op, 0, errors.Wrap(err, "build request"), err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(ctx, op, fallback, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	return decodeBody(op, resp, out)
}

func decodeBody(op string, resp *response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		wrapped := errors.Wrap(err, "decode response")
		return newAPIError(op, resp.status, wrapped, wrapped.Error())
	}
	return nil
}

// getRaw fetches url and returns the body bytes untouched.
func (c *Client) getRaw(ctx context.Context, op, fallback, url string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newAPIError(op, 0, errors.Wrap(err, "build request"), err.Error())
	}
	return c.send(ctx, op, fallback, req)
}
