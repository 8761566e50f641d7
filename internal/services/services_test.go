package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/ai"
)

func endpoint(url string) Endpoint {
	return Endpoint{URL: url, Timeout: 5 * time.Second}
}

func TestMatchSendsContractAndHeaders(t *testing.T) {
	var got MatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/match", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(MatchResponse{
			Jobs:         []JobMatch{{ID: "j1", Title: "Go dev", Score: 87}},
			TotalMatches: 1,
		})
	}))
	defer srv.Close()

	m := NewMatcher(endpoint(srv.URL+"/"), "tok", zap.NewNop())
	resp, err := m.Match(context.Background(), &MatchRequest{
		CVEmbedding: []float64{0.1, 0.2},
		Limit:       20,
		Filters:     &MatchFilters{Location: "Berlin"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, 87.0, resp.Jobs[0].Score)
	assert.Equal(t, 20, got.Limit)
	require.NotNil(t, got.Filters)
	assert.Equal(t, "Berlin", got.Filters.Location)
}

func TestMatchOmitsEmptyFilters(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match-with-rerank", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = io.WriteString(w, `{"jobs":[],"total_matches":0}`)
	}))
	defer srv.Close()

	_, err := NewMatcher(endpoint(srv.URL), "", nil).MatchWithRerank(context.Background(), &MatchRequest{
		CVEmbedding: []float64{1},
		Limit:       5,
	})
	require.NoError(t, err)
	_, present := raw["filters"]
	assert.False(t, present, "filters key should be omitted")
}

func TestStatusErrorAndGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "  warming up \n")
			return
		}

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(`{"embedding":[0.5,0.25]}`))
		_ = zw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	e := NewEmbedder(endpoint(srv.URL), 0, "", zap.NewNop())
	assert.Equal(t, DefaultUploadTimeout, e.UploadTimeout)

	err := e.Health(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "warming up", statusErr.Body)
	assert.Equal(t, EmbedderName, statusErr.Service)

	vec, err := e.EmbedQuery(context.Background(), "golang backend")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, vec)

	var provider ai.Embedder = e
	vec, err = provider.Embed(context.Background(), "golang backend")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, vec)
	assert.Equal(t, EmbedderName, provider.Model())
}

func TestEmbedCVUploadsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/cv", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cv.pdf", header.Filename)
		body, _ := io.ReadAll(file)
		assert.Equal(t, "%PDF-fake", string(body))

		_, _ = io.WriteString(w, `{"embedding":[1,2,3]}`)
	}))
	defer srv.Close()

	e := NewEmbedder(endpoint(srv.URL), time.Second, "tok", zap.NewNop())
	vec, err := e.EmbedCV(context.Background(), "/home/me/cv.pdf", strings.NewReader("%PDF-fake"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vec)
}

func TestEmbedJobsDefaultsCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EmbedJobsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultCollection, req.CollectionName)
		_ = json.NewEncoder(w).Encode(EmbedJobsResponse{CollectionName: req.CollectionName, Count: len(req.Jobs)})
	}))
	defer srv.Close()

	resp, err := NewEmbedder(endpoint(srv.URL), 0, "", nil).EmbedJobs(context.Background(), &EmbedJobsRequest{
		Jobs: []JobToEmbed{{ID: "1", Title: "t", Description: "d"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := ScrapeResponse{SourceName: req.SourceName, JobCount: 1, Jobs: []ScrapedJob{
			{SourceName: req.SourceName, JobURL: "https://x/1", JobURLHash: "h1", Title: "t", Description: "d"},
		}}
		if req.SourceName == "broken" {
			resp.Error = "source offline"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := NewScraper(endpoint(srv.URL), "", zap.NewNop())

	t.Run("ok", func(t *testing.T) {
		resp, err := s.Scrape(context.Background(), &ScrapeRequest{SourceName: "remotive", MaxJobs: 10})
		require.NoError(t, err)
		embed := resp.ToEmbed()
		require.Len(t, embed, 1)
		assert.Equal(t, "h1", embed[0].ID)
		assert.Equal(t, "remotive", embed[0].SourceName)
	})

	t.Run("error in body", func(t *testing.T) {
		resp, err := s.Scrape(context.Background(), &ScrapeRequest{SourceName: "broken", MaxJobs: 10})
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Contains(t, err.Error(), "source offline")
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.Scrape(context.Background(), &ScrapeRequest{SourceName: "remotive", MaxJobs: 501})
		require.Error(t, err)
		_, err = s.Scrape(context.Background(), &ScrapeRequest{MaxJobs: 5})
		require.Error(t, err)
	})
}

func TestCheckAllNeverFails(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	report := CheckAll(context.Background(), zap.NewNop(),
		NewScraper(endpoint(up.URL), "", nil),
		NewMatcher(endpoint(downURL), "", nil),
		NewEmbedder(endpoint(up.URL), 0, "", nil),
	)

	assert.Equal(t, HealthReport{ScraperName: true, MatcherName: false, EmbedderName: true}, report)
	assert.False(t, report.Healthy())
}
