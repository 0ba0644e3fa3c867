package core

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch"
	search "github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

// Collector executes search queries and gathers raw sources. A failing
// query is logged and skipped; the pass continues with whatever the
// remaining queries return.
type Collector struct {
	searcher   search.WebSearcher
	fetcher    *web_fetch.Fetcher
	maxResults int
	backfill   bool
	logger     *log.Logger
	telemetry  *telemetry.Telemetry
}

func NewCollector(searcher search.WebSearcher, cfg config.SearchConfig, tel *telemetry.Telemetry, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.New(log.Writer(), "[COLLECTOR] ", log.LstdFlags)
	}
	c := &Collector{
		searcher:   searcher,
		maxResults: cfg.MaxResults,
		backfill:   cfg.FetchContent,
		logger:     logger,
		telemetry:  tel,
	}
	if cfg.FetchContent {
		c.fetcher = web_fetch.NewFetcher(cfg.FetchTimeout, 0, "")
	}
	return c
}

// Collect runs every query and returns the deduplicated sources. It
// never fails; an empty slice means all queries came back empty or
// errored.
func (c *Collector) Collect(ctx context.Context, queries []string) []RawSource {
	seen := make(map[string]struct{})
	var sources []RawSource

	for _, q := range queries {
		results, err := c.searcher.Discover(ctx, q, c.maxResults)
		if c.telemetry != nil {
			c.telemetry.RecordSearch(err, len(results))
		}
		if err != nil {
			c.logger.Printf("search failed for %q, skipping: %v", q, err)
			continue
		}
		for _, r := range results {
			if r.URL == "" {
				continue
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			src := RawSource{
				URL:         r.URL,
				Title:       r.Title,
				Content:     r.Content,
				Snippet:     r.Snippet,
				RetrievedAt: time.Now().UTC(),
			}
			if src.Content == "" && c.fetcher != nil {
				src.Content = c.fetchContent(ctx, src.URL)
			}
			sources = append(sources, src)
		}
	}

	c.logger.Printf("collected %d sources from %d queries", len(sources), len(queries))
	return sources
}

// fetchContent backfills article text for providers that only return
// snippets. Fetch failures degrade to the snippet.
func (c *Collector) fetchContent(ctx context.Context, link string) string {
	res, err := c.fetcher.Exec(ctx, link)
	if err != nil {
		c.logger.Printf("content fetch failed for %s: %v", link, err)
		return ""
	}
	return res.Text
}
