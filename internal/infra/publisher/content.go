package publisher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"newsingest/internal/resilience/circuitbreaker"
	"newsingest/internal/resilience/retry"
)

const (
	userAgent      = "NewsIngestBot/1.0"
	maxBodySize    = 10 << 20 // 10 MiB
	maxRedirects   = 5
	defaultTimeout = 15 * time.Second
)

// contentExtractor fetches a single article page and extracts clean text with
// the Readability algorithm. Shared by the source adapters so every source
// gets the same size limits, circuit breaker, and extraction behavior.
//
// Safe for concurrent use.
type contentExtractor struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

func newContentExtractor(name string) *contentExtractor {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return nil
		},
	}

	return &contentExtractor{
		client:  client,
		breaker: circuitbreaker.New(circuitbreaker.PageFetchConfig(name)),
		timeout: defaultTimeout,
	}
}

// extracted is the result of one page fetch.
type extracted struct {
	title   string
	content string
	images  []string
}

// Extract fetches the page and runs Readability over it. Transient transport
// failures surface as retry.HTTPError so the caller can classify them.
func (c *contentExtractor) Extract(ctx context.Context, pageURL string) (*extracted, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doExtract(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}
	return result.(*extracted), nil
}

func (c *contentExtractor) doExtract(ctx context.Context, pageURL string) (*extracted, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	limited := io.LimitReader(resp.Body, maxBodySize+1)
	htmlBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(htmlBytes)) > maxBodySize {
		return nil, fmt.Errorf("response exceeds %d byte limit", int64(maxBodySize))
	}

	// Redirects may have moved us; Readability resolves relative links
	// against the final URL.
	finalURL, err := url.Parse(pageURL)
	if err != nil {
		finalURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), finalURL)
	if err != nil {
		return nil, fmt.Errorf("readability extraction: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		content = strings.TrimSpace(article.Content)
		if content == "" {
			return nil, fmt.Errorf("no readable content at %s", pageURL)
		}
		slog.Debug("falling back to html content",
			slog.String("url", pageURL),
			slog.Int("length", len(content)))
	}

	var images []string
	if article.Image != "" {
		images = append(images, article.Image)
	}

	return &extracted{
		title:   strings.TrimSpace(article.Title),
		content: content,
		images:  images,
	}, nil
}
