package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"emlaksync/config"
	"emlaksync/models"
	"emlaksync/translate"
)

const mapCaptureTimeout = 30 * time.Second

// hepsiemlakAdapter discovers listings by intercepting the portal's map
// API instead of walking result pages. The map payload also carries the
// coordinate and price the detail page sometimes hides, so the adapter
// keeps it around for the detail pass.
type hepsiemlakAdapter struct {
	cfg     *config.SiteConfig
	mapInfo map[string]realtyInfo // detail URL -> map API data
}

type realtyInfo struct {
	ListingID string
	Price     *int64
	Location  *models.LatLng
}

type realtyMapPayload struct {
	Realties []struct {
		ListingID   string          `json:"listingId"`
		RealtyID    json.RawMessage `json:"realtyId"`
		Price       json.Number     `json:"price"`
		MapLocation *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"mapLocation"`
	} `json:"realties"`
}

func newHepsiemlakAdapter(cfg *config.SiteConfig) *hepsiemlakAdapter {
	return &hepsiemlakAdapter{
		cfg:     cfg,
		mapInfo: make(map[string]realtyInfo),
	}
}

func (a *hepsiemlakAdapter) ID() string { return a.cfg.ID }

func (a *hepsiemlakAdapter) Discover(ctx context.Context, page playwright.Page) ([]string, error) {
	capture := captureResponse(page, a.cfg.APIMatch)

	if err := navigate(page, a.cfg.MapURL, 60000); err != nil {
		return nil, setupErr("map navigation", err)
	}
	if err := waitForClearance(ctx, page); err != nil && err != ErrChallengeTimeout {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, mapCaptureTimeout)
	defer cancel()

	body, err := capture.wait(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, setupErr("map api", fmt.Errorf("no %s response within %s", a.cfg.APIMatch, mapCaptureTimeout))
	}

	urls, err := a.ingestMapPayload(body)
	if err != nil {
		return nil, setupErr("map api", err)
	}
	if len(urls) == 0 {
		return nil, setupErr("map api", ErrNoDiscovery)
	}

	log.Printf("[%s] map api: %d listings discovered", a.cfg.ID, len(urls))
	return urls, nil
}

// ingestMapPayload parses the realty-map response, records per-listing
// map data, and returns the detail URLs in payload order.
func (a *hepsiemlakAdapter) ingestMapPayload(body []byte) ([]string, error) {
	var payload realtyMapPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse realty-map payload: %w", err)
	}

	var urls []string
	for _, realty := range payload.Realties {
		if realty.ListingID == "" {
			continue
		}

		url := a.detailURL(realty.ListingID)
		if _, seen := a.mapInfo[url]; seen {
			continue
		}

		info := realtyInfo{ListingID: realty.ListingID}
		if price, err := realty.Price.Int64(); err == nil && price > 0 {
			info.Price = &price
		}
		if loc := realty.MapLocation; loc != nil && (loc.Lat != 0 || loc.Lon != 0) {
			info.Location = &models.LatLng{Lat: loc.Lat, Lng: loc.Lon}
		}

		a.mapInfo[url] = info
		urls = append(urls, url)
	}

	return urls, nil
}

func (a *hepsiemlakAdapter) detailURL(listingID string) string {
	return strings.TrimRight(a.cfg.DetailURLPrefix, "/") + "/" + listingID
}

func (a *hepsiemlakAdapter) Extract(ctx context.Context, page playwright.Page, url string) (*models.CanonicalListing, error) {
	if err := navigate(page, url, 30000); err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	if err := waitForClearance(ctx, page); err != nil {
		if err == ErrChallengeTimeout {
			log.Printf("[%s] %v, extracting anyway: %s", a.cfg.ID, err, url)
		} else {
			return nil, err
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	listing, err := a.parseDetail(url, html)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	// Backfill from the map payload where the page came up empty.
	if info, ok := a.mapInfo[url]; ok {
		if listing.ListingID == "" {
			listing.ListingID = info.ListingID
		}
		if listing.PriceNumeric == nil {
			listing.PriceNumeric = info.Price
		}
		listing.Coordinates = info.Location
	}

	return listing, nil
}

// parseDetail reads the spec table and headline fields out of a detail
// page snapshot. The portal's markup shifts between releases, so every
// lookup walks a selector chain and keeps the first hit.
func (a *hepsiemlakAdapter) parseDetail(url, html string) (*models.CanonicalListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	raw := make(map[string]string)

	doc.Find(".adv-info-list .spec-item").Each(func(_ int, item *goquery.Selection) {
		key := firstText(item, ".spec-item-label", ".tooltip-wrapper .txt", ".txt", "dt", ".key")
		if key == "" {
			return
		}

		// Brüt / Net is rendered as sibling spans rather than one value node.
		if strings.Contains(key, "Brüt") && strings.Contains(key, "Net") {
			var parts []string
			item.Find("span").Not(".txt").Each(func(_ int, span *goquery.Selection) {
				if txt := translate.CleanText(span.Text()); txt != "" {
					parts = append(parts, txt)
				}
			})
			if len(parts) >= 2 {
				gross, net := translate.SplitGrossNet(strings.Join(parts, " / "))
				if gross != "" {
					raw["Brüt Metrekare"] = gross
				}
				if net != "" {
					raw["Net Metrekare"] = net
				}
				return
			}
		}

		value := firstText(item, ".spec-item-value", "dd", ".value", ".val")
		if value == "" {
			value = spanValues(item)
		}
		if value != "" && len(key) < 100 && len(value) < 500 {
			raw[key] = value
		}
	})

	// Older markup keeps the table in plain rows.
	if len(raw) == 0 {
		doc.Find("table tr, .spec-table tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() >= 2 {
				key := translate.CleanText(cells.Eq(0).Text())
				value := translate.CleanText(cells.Eq(1).Text())
				if key != "" && value != "" {
					raw[key] = value
				}
			}
		})
	}

	fields := translate.Apply(raw)

	// A challenge shell or error page carries none of the spec table
	// and no headline either.
	if len(raw) == 0 && firstText(doc.Selection, "h1.fontRB", "h1") == "" {
		return nil, fmt.Errorf("page yielded no recognizable fields")
	}

	if title := firstText(doc.Selection, "h1.fontRB", "h1", ".listing-title"); title != "" {
		fields[models.FieldTitle] = title
	}
	if province := firstText(doc.Selection, ".detail-info-location", ".location"); province != "" {
		fields[models.FieldProvince] = translate.TranslateValue(province)
	}
	if desc := firstText(doc.Selection, ".ql-editor.description-content", ".description"); desc != "" {
		fields[models.FieldDescription] = desc
	}

	priceText := firstText(doc.Selection, ".fz24-text.price", ".price")
	price := translate.ParsePrice(priceText)
	if price != nil {
		fields[models.FieldPrice] = priceText
	}

	return &models.CanonicalListing{
		Site:         a.cfg.ID,
		ListingID:    fields[models.FieldListingNo],
		URL:          url,
		Fields:       fields,
		PriceNumeric: price,
		Images:       collectImages(doc),
		ExtractedAt:  time.Now().UTC(),
	}, nil
}

// firstText walks a selector chain and returns the first non-empty,
// whitespace-normalized text.
func firstText(root *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if txt := translate.CleanText(root.Find(sel).First().Text()); txt != "" {
			return txt
		}
	}
	return ""
}

// spanValues joins an item's value spans, skipping the label span.
func spanValues(item *goquery.Selection) string {
	var parts []string
	item.Find("span").Not(".txt").Each(func(_ int, span *goquery.Selection) {
		if txt := translate.CleanText(span.Text()); txt != "" {
			parts = append(parts, txt)
		}
	})
	return strings.Join(parts, " ")
}

// collectImages gathers gallery image URLs, filtering out the chrome
// the portals pad their pages with.
func collectImages(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var images []string

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" || len(src) < 50 {
			return
		}
		for _, skip := range []string{"placeholder", "data:image", "icon", "logo", "flag_"} {
			if strings.Contains(src, skip) {
				return
			}
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})

	return images
}
