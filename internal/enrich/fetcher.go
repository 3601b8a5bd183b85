package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/utils"
)

const (
	DefaultBaseURL   = "https://r.jina.ai/"
	DefaultUserAgent = "Mozilla/5.0 (compatible; BookmarkBot/1.0)"

	// Extractor bodies are whole pages rendered as markdown.
	maxBodyBytes = 2 << 20
)

// Fetcher returns the extractor's plain-text rendering of a page.
// Implementations must honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// StatusError reports a non-2xx answer from the extractor.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extractor returned %s", e.Status)
}

type JinaOptions struct {
	BaseURL   string       // default: https://r.jina.ai/
	UserAgent string       // default: BookmarkBot
	Client    *http.Client // default: dedicated client, no global timeout (ctx bounds each call)
}

// JinaClient talks to r.jina.ai style endpoints: the target URL is appended
// to the base as-is, without percent-encoding.
type JinaClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewJinaClient(opts JinaOptions) *JinaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Client == nil {
		opts.Client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: 0, // bounded by ctx
			},
		}
	}
	return &JinaClient{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		client:    opts.Client,
	}
}

// Fetch issues GET <base><target> and returns the body of a 2xx response.
func (c *JinaClient) Fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to build extractor request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extractor request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read extractor response: %w", err)
	}
	return string(body), nil
}
