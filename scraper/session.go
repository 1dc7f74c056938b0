package scraper

import (
	"context"
	"log"
	"math/rand"
	"time"

	"emlaksync/config"
	"emlaksync/models"
)

// Session runs one full crawl of a portal: discovery, then a sequential
// pass over every detail page. Detail requests never run concurrently
// and always keep a floor delay between them; the portals rate-limit
// aggressively and a ban costs far more than a slow crawl.
type Session struct {
	adapter Adapter
	browser *Browser
	scraper *config.ScraperConfig

	// Limit caps how many discovered listings get the detail pass.
	// Zero means no cap.
	Limit int
}

func NewSession(adapter Adapter, browser *Browser, cfg *config.ScraperConfig) *Session {
	return &Session{adapter: adapter, browser: browser, scraper: cfg}
}

// Run executes the crawl. Per-URL extraction failures are recorded in
// the result and never abort the pass; only setup failures and context
// cancellation surface as errors.
func (s *Session) Run(ctx context.Context) (*models.CrawlResult, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	urls, err := s.adapter.Discover(ctx, page)
	if err != nil {
		return nil, err
	}

	if s.Limit > 0 && len(urls) > s.Limit {
		log.Printf("[%s] limiting detail pass to %d of %d listings", s.adapter.ID(), s.Limit, len(urls))
		urls = urls[:s.Limit]
	}

	result := &models.CrawlResult{}
	total := len(urls)

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		listing, err := s.adapter.Extract(ctx, page, url)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.Printf("[%s] [%d/%d] failed: %v", s.adapter.ID(), i+1, total, err)
			result.Failed = append(result.Failed, models.CrawlFailure{URL: url, Err: err.Error()})
		} else {
			log.Printf("[%s] [%d/%d] ok: %s", s.adapter.ID(), i+1, total, url)
			result.Succeeded = append(result.Succeeded, *listing)
		}

		if i < total-1 {
			if err := s.pause(ctx); err != nil {
				return result, err
			}
		}
	}

	log.Printf("[%s] crawl done: %d ok, %d failed", s.adapter.ID(), len(result.Succeeded), len(result.Failed))
	return result, nil
}

func (s *Session) pause(ctx context.Context) error {
	delay := time.Duration(s.scraper.DelayMS) * time.Millisecond
	if s.scraper.JitterMS > 0 {
		delay += time.Duration(rand.Intn(s.scraper.JitterMS)) * time.Millisecond
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
