// Package rest performs single HTTP calls against the Invo API and
// classifies their outcomes into the SDK error taxonomy. It carries no
// credential state; the session layer decides which bearer token, if
// any, each request gets.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/invohq/invo-go/autherr"
)

const (
	defaultUserAgent = "invo-go/1"
	requestIDHeader  = "X-Request-Id"
	workspaceHeader  = "X-Invo-Workspace"
)

// ResultKind tells the executor what shape of response body to expect.
type ResultKind int

const (
	// ResultJSON is the default: the body is returned as raw JSON bytes.
	ResultJSON ResultKind = iota
	// ResultBinary expects a byte payload (e.g. a rendered PDF). A JSON
	// body is inspected for a serialized Buffer wrapper, see binary.go.
	ResultBinary
)

// Request describes one call. Body may be nil, an io.Reader that is
// streamed as-is (the caller sets ContentType, e.g. a multipart form),
// or any value that will be JSON-encoded.
type Request struct {
	Method      string
	Path        string
	Body        any
	BearerToken string // attached as Authorization: Bearer when non-empty
	Workspace   string // attached as the workspace header when non-empty
	Result      ResultKind
	ContentType string // overrides the content type for reader bodies
}

// Response is the classified outcome of a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	Bytes      []byte
}

// DecodeJSON unmarshals the response body into out.
func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Bytes, out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

// Client executes requests against one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for per-request traces.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a Client bound to baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, errors.New("[rest.New] base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		httpClient: http.DefaultClient,
		userAgent:  defaultUserAgent,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// errorBody is the API's error envelope.
type errorBody struct {
	Message string `json:"message"`
}

// Do executes one request and classifies the result. Transport failures
// come back as network-kind errors, HTTP 401 as invalid-credentials, and
// every other non-2xx status as a generic auth-kind error carrying the
// status code. No retries happen here.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Str("request_id", requestID).Str("path", req.Path).Err(err).Msg("transport failure")
		return nil, autherr.Wrap(autherr.KindNetwork, err, "request could not be sent")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindNetwork, err, "reading response body")
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", httpReq.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Bytes: body}
	if req.Result == ResultBinary {
		raw, err := extractBinary(resp.Header.Get("Content-Type"), body)
		if err != nil {
			return nil, err
		}
		out.Bytes = raw
	}
	return out, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)
	switch body := req.Body.(type) {
	case nil:
	case io.Reader:
		// Pre-encoded payloads (multipart forms, raw uploads) pass
		// through untouched; the caller owns the content type.
		reader = body
		contentType = req.ContentType
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
		if req.ContentType != "" {
			contentType = req.ContentType
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}
	if req.Workspace != "" {
		httpReq.Header.Set(workspaceHeader, req.Workspace)
	}
	return httpReq, nil
}

// classifyStatus maps a non-success HTTP status to the error taxonomy.
func classifyStatus(statusCode int, body []byte) error {
	message := "Request failed"
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	}
	if statusCode == http.StatusUnauthorized {
		return autherr.WithStatus(autherr.KindInvalidCredentials, statusCode, message)
	}
	return autherr.WithStatus(autherr.KindAuth, statusCode, message)
}
