package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	EmbedderName = "embedder"

	// DefaultCollection is the vector collection jobs are embedded into.
	DefaultCollection = "jobs"
)

var (
	DefaultEmbedder = Endpoint{URL: "http://localhost:8002", Timeout: 60 * time.Second}
	// DefaultUploadTimeout applies to CV uploads, which are parsed server side.
	DefaultUploadTimeout = 120 * time.Second
)

// JobToEmbed is a job posting submitted for embedding.
type JobToEmbed struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	SourceName  string `json:"source_name,omitempty"`
}

type EmbedJobsRequest struct {
	Jobs           []JobToEmbed `json:"jobs"`
	CollectionName string       `json:"collection_name,omitempty"`
}

type EmbedJobsResponse struct {
	CollectionName string `json:"collection_name"`
	Count          int    `json:"count"`
}

type embedQueryRequest struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type Embedder struct {
	*Client
	UploadTimeout time.Duration
}

func NewEmbedder(endpoint Endpoint, uploadTimeout time.Duration, token string, log *zap.Logger) *Embedder {
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &Embedder{
		Client:        New(EmbedderName, endpoint, token, log),
		UploadTimeout: uploadTimeout,
	}
}

// EmbedCV uploads a CV document as multipart field "file" and returns its embedding.
func (e *Embedder) EmbedCV(ctx context.Context, filename string, content io.Reader) ([]float64, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/embed/cv", &b)
	if err != nil {
		return nil, err
	}

	req = e.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	upload := *e.HTTPClient
	upload.Timeout = e.UploadTimeout

	var resp embeddingResponse
	if err := e.do(&upload, req, &resp); err != nil {
		return nil, err
	}

	e.logger.Debug("cv embedded", zap.String("file", filepath.Base(filename)), zap.Int("dimensions", len(resp.Embedding)))

	return resp.Embedding, nil
}

// EmbedQuery embeds free text such as a search query or pasted CV text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("%s: text to embed is empty", e.name)
	}

	var resp embeddingResponse
	if err := e.postJSON(ctx, "/embed/query", embedQueryRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	return resp.Embedding, nil
}

// Embed embeds text through the query endpoint.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.EmbedQuery(ctx, text)
}

// Model names the provider. The service does not report its model.
func (e *Embedder) Model() string {
	return EmbedderName
}

func (e *Embedder) EmbedJobs(ctx context.Context, req *EmbedJobsRequest) (*EmbedJobsResponse, error) {
	if req.CollectionName == "" {
		req.CollectionName = DefaultCollection
	}

	var resp EmbedJobsResponse
	if err := e.postJSON(ctx, "/embed/jobs", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
