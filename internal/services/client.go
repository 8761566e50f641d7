// Package services talks to the scraper, embedder and matcher HTTP services.
package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/logger"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/joblens"

	// Bodies of failed responses are kept for diagnostics, truncated.
	maxErrorBody = 512
)

// Endpoint is the location and per-request timeout of a service.
type Endpoint struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StatusError is returned when a service answers with a non-2xx status.
type StatusError struct {
	Service string
	Code    int
	Status  string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: bad status: %s", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: bad status: %s: %s", e.Service, e.Status, e.Body)
}

type Client struct {
	name       string
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

// New creates a client for the service called name. The token is sent as a
// bearer credential when it is not empty.
func New(name string, endpoint Endpoint, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		name:   name,
		token:  token,
		logger: log.With(zap.String(logger.FieldService, name)),
		HTTPClient: &http.Client{
			Timeout: endpoint.Timeout,
		},
		UserAgent: userAgent,
		BaseURL:   strings.TrimRight(endpoint.URL, "/"),
	}
}

func (c *Client) Name() string {
	return c.name
}

// Health returns nil when the service answers GET /health with a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	return c.do(c.HTTPClient, req, target)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)

	return c.do(c.HTTPClient, req, target)
}

func (c *Client) do(hc *http.Client, req *http.Request, target any) error {
	c.logger.Debug("make request",
		zap.String(logger.FieldEndpoint, req.URL.Path),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.name, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: %w", c.name, req.URL.Path, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", c.name, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Service: c.name,
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Body:    logger.TruncateForLog(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", c.name, req.URL.Path, err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req
}
