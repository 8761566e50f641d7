// Package supabase is a minimal client for the hosted auth and row APIs.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/logger"
)

const (
	contentType = "application/json"
	userAgent   = "spigell/joblens"

	// DefaultTable holds one preference row per user.
	DefaultTable = "user_preferences"

	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

var errMissingConfig = errors.New("supabase url and anon key are required")

// APIError is an error answer from the auth or row API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase: status %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	return b.String()
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	URL        string
	AnonKey    string
	Table      string
}

func New(baseURL, anonKey string, log *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	anonKey = strings.TrimSpace(anonKey)
	if baseURL == "" || anonKey == "" {
		return nil, errMissingConfig
	}

	return &Client{
		logger: logger.WithService(log, "supabase"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		UserAgent: userAgent,
		URL:       baseURL,
		AnonKey:   anonKey,
		Table:     DefaultTable,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, body)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.AnonKey))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

// do sends req and decodes a 2xx body into target when target is not nil.
func (c *Client) do(req *http.Request, target any) error {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String(logger.FieldEndpoint, req.URL.Path))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}

// errorBody covers both the row API and the auth API error shapes.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
}

func parseError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = logger.TruncateForLog(string(data), 256)
		return apiErr
	}

	var code string
	if err := json.Unmarshal(body.Code, &code); err == nil {
		apiErr.Code = code
	}
	if apiErr.Code == "" {
		apiErr.Code = firstNonEmpty(body.ErrorCode, body.Error)
	}

	apiErr.Message = firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error)
	apiErr.Details = body.Details
	apiErr.Hint = body.Hint

	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
