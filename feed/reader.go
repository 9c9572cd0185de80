// Package feed retrieves and parses syndicated feeds (RSS, Atom, JSON Feed)
// into core.Feed values.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/poiesic/culldron/core"
	"golang.org/x/time/rate"
)

// Reader fetches a feed document by URL.
type Reader interface {
	Read(ctx context.Context, url string) (*core.Feed, error)
}

const (
	DefaultTimeout       = 30 * time.Second
	DefaultUserAgent     = "culldron/1.0"
	DefaultRatePerSecond = 2.0
	DefaultBurst         = 4
	DefaultMaxBodyBytes  = 16 << 20
)

// HTTPReader reads feeds over HTTP. All reads through one HTTPReader share
// a rate limiter.
type HTTPReader struct {
	client       *http.Client
	userAgent    string
	limiter      *rate.Limiter
	maxBodyBytes int64
	logger       *slog.Logger
}

var _ Reader = (*HTTPReader)(nil)

// Option configures an HTTPReader.
type Option func(*HTTPReader)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *HTTPReader) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. The client's timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(r *HTTPReader) {
		if c != nil {
			r.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(r *HTTPReader) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithRateLimit limits fetches to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *HTTPReader) {
		if perSecond <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxBodyBytes caps the number of bytes read from a response.
func WithMaxBodyBytes(n int64) Option {
	return func(r *HTTPReader) {
		if n > 0 {
			r.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *HTTPReader) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "feed")
	}
}

// NewHTTPReader creates a Reader with default settings adjusted by opts.
func NewHTTPReader(opts ...Option) *HTTPReader {
	r := &HTTPReader{
		client:       &http.Client{Timeout: DefaultTimeout},
		userAgent:    DefaultUserAgent,
		limiter:      rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBurst),
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default().With("component", "feed"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read fetches and parses the feed at url. A feed with no entries is not an
// error.
func (r *HTTPReader) Read(ctx context.Context, url string) (*core.Feed, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrSourceUnreachable, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrSourceUnreachable, err)
	}
	if int64(len(body)) > r.maxBodyBytes {
		return nil, fmt.Errorf("%w: %w: %s exceeds %d bytes", ErrSourceUnreachable, ErrFeedTooLarge, url, r.maxBodyBytes)
	}

	parsed, err := Parse(body)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("feed retrieved",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"entries", len(parsed.Entries),
		"duration", time.Since(start))
	return parsed, nil
}

// Parse converts a raw feed document into a core.Feed, preserving entry order.
func Parse(doc []byte) (*core.Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	out := &core.Feed{
		Title:   parsed.Title,
		Entries: make([]core.Entry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		out.Entries = append(out.Entries, toEntry(item))
	}
	return out, nil
}

func toEntry(item *gofeed.Item) core.Entry {
	e := core.Entry{
		Title:     item.Title,
		Link:      item.Link,
		Content:   item.Content,
		Summary:   item.Description,
		Published: item.PublishedParsed,
		Updated:   item.UpdatedParsed,
	}
	if e.Link == "" && len(item.Links) > 0 {
		e.Link = item.Links[0]
	}
	return e
}
