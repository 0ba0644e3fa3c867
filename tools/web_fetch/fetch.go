// Package web_fetch retrieves a page over plain HTTP and extracts its main
// text via readability. Used to backfill content for search providers that
// only return snippets.
package web_fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher is a reusable plain-HTTP page fetcher. Construct once; Exec per URL.
type Fetcher struct {
	client    *http.Client
	UserAgent string
	MaxChars  int
}

func NewFetcher(timeout time.Duration, maxChars int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 12000
	}
	if userAgent == "" {
		userAgent = "deepresearch/1.0 (+https://github.com/mohammad-safakhou/deepresearch)"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		MaxChars:  maxChars,
	}
}

// Exec downloads link and extracts the readable article body.
func (f *Fetcher) Exec(ctx context.Context, link string) (Result, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{}, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return Result{}, fmt.Errorf("readability: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Result{URL: u.String(), Title: article.Title, Text: text}, nil
}
