package cache

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// HTTPError is returned for a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// APICache fetches JSON over HTTP through a Queries layer.
type APICache struct {
	queries *Queries
	client  *http.Client
	log     *slog.Logger
}

// NewAPICache creates an APICache. A nil client gets a 30 second timeout.
func NewAPICache(q *Queries, client *http.Client, log *slog.Logger) *APICache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &APICache{queries: q, client: client, log: log}
}

// CacheKey identifies a request by method, URL and body.
func CacheKey(method, url string, body []byte) string {
	if method == "" {
		method = http.MethodGet
	}
	return "api_" + method + "_" + url + "_" + base64.StdEncoding.EncodeToString(body)
}

// FetchWithCache returns the JSON body of req, from cache when possible.
// Concurrent identical requests share one round trip.
func (a *APICache) FetchWithCache(ctx context.Context, req *http.Request, cfg Config) (json.RawMessage, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	key := CacheKey(req.Method, req.URL.String(), body)
	return Query(ctx, a.queries, key, func(ctx context.Context) (json.RawMessage, error) {
		return a.fetch(ctx, req, body)
	}, cfg)
}

func (a *APICache) fetch(ctx context.Context, req *http.Request, body []byte) (json.RawMessage, error) {
	r := req.Clone(ctx)
	if body != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
	}

	resp, err := a.client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: req.URL.String()}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("response from %s is not JSON", req.URL)
	}
	return json.RawMessage(data), nil
}

// FetchJSON fetches req through a and unmarshals the body into T.
func FetchJSON[T any](ctx context.Context, a *APICache, req *http.Request, cfg Config) (T, error) {
	var out T
	raw, err := a.FetchWithCache(ctx, req, cfg)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s: %w", req.URL, err)
	}
	return out, nil
}

// Invalidate drops cached responses whose key starts with prefix.
func (a *APICache) Invalidate(ctx context.Context, prefix string) {
	a.queries.Invalidate(ctx, prefix)
}

// WarmupRequest is one request to prefetch.
type WarmupRequest struct {
	Request *http.Request
	Config  Config
}

// Warmup prefetches reqs concurrently. Individual failures are logged and
// do not stop the others.
func (a *APICache) Warmup(ctx context.Context, reqs []WarmupRequest) {
	var g errgroup.Group
	g.SetLimit(4)
	for _, wr := range reqs {
		g.Go(func() error {
			if _, err := a.FetchWithCache(ctx, wr.Request, wr.Config); err != nil {
				a.log.Warn("cache: warmup failed", "url", wr.Request.URL.String(), "error", err)
			}
			return nil
		})
	}
	g.Wait()
}
