package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/session"
)

// Client is the gateway to the remote REST service. It injects bearer
// auth from the session store, normalizes the response envelope, and
// honors context cancellation. A cancelled request never has its body
// applied.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Store
	logger   *zap.Logger
}

// RequestOptions tunes a single gateway call. The zero value is a
// bare authenticated request with no body.
type RequestOptions struct {
	// Body is JSON-marshalled when non-nil.
	Body any
	// RawBody is sent untouched (multipart uploads); takes precedence
	// over Body and requires ContentType.
	RawBody     io.Reader
	ContentType string
	Query       url.Values
	Headers     map[string]string
	// NoAuth skips bearer injection (login, registration).
	NoAuth bool
}

// NewClient creates a gateway client. timeout bounds every request so
// a hung call cannot pin a loader or a pending mutation forever.
func NewClient(baseURL string, timeout time.Duration, sessions *session.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		logger:   logger,
	}
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, &RequestOptions{Query: query})
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, &RequestOptions{Body: body})
}

// Do performs one call against the remote service.
//
// The service speaks an envelope `{status, data, message}`: status=true
// is success regardless of HTTP code, status=false is failure with the
// server's own message. Responses without the envelope fall back to
// the HTTP status; non-JSON 2xx bodies are returned verbatim.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	fullURL := joinURL(c.baseURL, path)
	if len(opts.Query) > 0 {
		fullURL += "?" + opts.Query.Encode()
	}

	var token string
	if !opts.NoAuth {
		sess, err := c.sessions.Load()
		if err != nil {
			// Fail fast, no network call.
			return nil, fmt.Errorf("authenticate request: %w", err)
		}
		token = sess.Token
	}

	var body io.Reader
	contentType := opts.ContentType
	switch {
	case opts.RawBody != nil:
		body = opts.RawBody
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, fullURL, ctx.Err())
		}
		return nil, &Error{Status: 0, Message: err.Error(), URL: fullURL}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, fullURL, ctx.Err())
		}
		return nil, &Error{Status: 0, Message: err.Error(), URL: fullURL}
	}
	// The caller may have cancelled while the body was in flight; a
	// cancelled result must never be applied.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s %s: %w", method, fullURL, ctx.Err())
	}

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("url", fullURL),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	return c.normalize(resp, fullURL, raw)
}

func (c *Client) normalize(resp *http.Response, fullURL string, raw []byte) (json.RawMessage, error) {
	status := gjson.GetBytes(raw, "status")
	isEnvelope := gjson.ValidBytes(raw) && status.Exists() &&
		(status.Type == gjson.True || status.Type == gjson.False)

	if isEnvelope {
		if status.Bool() {
			if data := gjson.GetBytes(raw, "data"); data.Exists() {
				return json.RawMessage(data.Raw), nil
			}
			return json.RawMessage(raw), nil
		}
		return nil, &Error{
			Status:  resp.StatusCode,
			Message: serverMessage(raw, resp.StatusCode),
			URL:     fullURL,
			Data:    raw,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Status:  resp.StatusCode,
			Message: serverMessage(raw, resp.StatusCode),
			URL:     fullURL,
			Data:    raw,
		}
	}

	// 2xx without the envelope: hand back whatever the server sent.
	return json.RawMessage(raw), nil
}

// serverMessage prefers the body's own message field, falling back to
// the HTTP status text.
func serverMessage(raw []byte, code int) string {
	if m := gjson.GetBytes(raw, "message"); m.Type == gjson.String && m.Str != "" {
		return m.Str
	}
	return http.StatusText(code)
}

// joinURL concatenates base and path with exactly one slash between
// them, regardless of what the caller supplied.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
