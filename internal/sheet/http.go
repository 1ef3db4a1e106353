package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appLog "choircal/internal/log"
)

const maxBodyBytes = 8 << 20

// ErrTooLarge is returned when an export exceeds maxBodyBytes. A truncated
// export is never served or kept.
var ErrTooLarge = fmt.Errorf("sheet: export larger than %d bytes", maxBodyBytes)

// cacheEntry holds HTTP validators and the last good body for the URL.
type cacheEntry struct {
	ETag         string
	LastModified string
	Body         []byte
}

// HTTPSource fetches a published spreadsheet export with conditional GET
// (ETag / Last-Modified). The last good body is kept in memory and reused on
// 304, network errors and non-OK responses.
type HTTPSource struct {
	id      string
	url     string
	client  *http.Client
	limiter *rate.Limiter

	mu   sync.Mutex
	last cacheEntry
}

// HTTPOption customizes an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithMinInterval paces upstream requests to at most one per interval.
// Zero disables pacing.
func WithMinInterval(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewHTTPSource creates a source for url. timeout bounds each request.
func NewHTTPSource(id, url string, timeout time.Duration, opts ...HTTPOption) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &HTTPSource{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) ID() string { return s.id }

// Fetch retrieves the export, honoring ETag and Last-Modified.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.url == "" {
		return nil, errors.New("sheet: source URL is empty")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return s.fallback(err)
	}

	s.mu.Lock()
	meta := s.last
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("sheet fetch start", "id", s.id, "url", redactURL(s.url))

	resp, err := s.client.Do(req)
	if err != nil {
		return s.fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if isHTML(resp.Header.Get("Content-Type")) {
			return s.fallback(ErrNotPublished)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if readErr != nil {
			return s.fallback(readErr)
		}
		if len(body) > maxBodyBytes {
			return s.fallback(ErrTooLarge)
		}

		s.mu.Lock()
		s.last = cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		}
		s.mu.Unlock()

		appLog.Info("sheet fetch success", "id", s.id, "url", redactURL(s.url), "status", resp.StatusCode, "bytes", len(body))
		return body, nil

	case http.StatusNotModified:
		if len(meta.Body) == 0 {
			return nil, errors.New("sheet: received 304 Not Modified but no cached body available")
		}
		appLog.Debug("sheet fetch not modified", "id", s.id, "url", redactURL(s.url))
		return meta.Body, nil

	default:
		return s.fallback(fmt.Errorf("sheet: unexpected status %s", resp.Status))
	}
}

// fallback returns the last good body when there is one, otherwise err.
func (s *HTTPSource) fallback(err error) ([]byte, error) {
	s.mu.Lock()
	body := s.last.Body
	s.mu.Unlock()

	if len(body) > 0 {
		appLog.Error("sheet fetch failed, using last good body", err, "id", s.id, "url", redactURL(s.url))
		return body, nil
	}
	return nil, err
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}

// redactURL hides everything after the host so spreadsheet IDs and tokens
// stay out of the logs.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "sheet://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
