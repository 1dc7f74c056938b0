package scraper

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"emlaksync/config"
	"emlaksync/models"
)

// Adapter knows one portal: how to discover the current set of listing
// URLs and how to turn a single detail page into a canonical listing.
// Adapters hold per-session state (hepsiemlak keeps map API data for
// the detail pass), so a fresh adapter is built for every crawl.
type Adapter interface {
	ID() string
	Discover(ctx context.Context, page playwright.Page) ([]string, error)
	Extract(ctx context.Context, page playwright.Page, url string) (*models.CanonicalListing, error)
}

// NewAdapter builds the adapter for a site based on its configured
// extraction strategy.
func NewAdapter(cfg *config.SiteConfig) (Adapter, error) {
	switch cfg.Strategy {
	case "api":
		return newHepsiemlakAdapter(cfg), nil
	case "dom":
		return newEmlakjetAdapter(cfg), nil
	default:
		return nil, setupErr("adapter", fmt.Errorf("unknown strategy %q for site %s", cfg.Strategy, cfg.ID))
	}
}
