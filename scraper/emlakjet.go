package scraper

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"emlaksync/config"
	"emlaksync/models"
	"emlaksync/translate"
)

const defaultMaxPages = 10

// listingIDPattern pulls the numeric ID off the tail of a detail URL,
// e.g. /ilan/satilik-daire-antalya-17548821/.
var listingIDPattern = regexp.MustCompile(`-(\d+)/?$`)

// emlakjetAdapter walks paginated search results and reads listing data
// straight out of the rendered DOM.
type emlakjetAdapter struct {
	cfg *config.SiteConfig
}

func newEmlakjetAdapter(cfg *config.SiteConfig) *emlakjetAdapter {
	return &emlakjetAdapter{cfg: cfg}
}

func (a *emlakjetAdapter) ID() string { return a.cfg.ID }

func (a *emlakjetAdapter) Discover(ctx context.Context, page playwright.Page) ([]string, error) {
	maxPages := a.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	urls, err := collectPagedURLs(ctx, maxPages, func(pageNum int) ([]string, error) {
		pageURL := a.cfg.SearchURL
		if pageNum > 1 {
			sep := "?"
			if strings.Contains(pageURL, "?") {
				sep = "&"
			}
			pageURL = fmt.Sprintf("%s%ssayfa=%d", pageURL, sep, pageNum)
		}

		if err := navigate(page, pageURL, 30000); err != nil {
			return nil, err
		}
		if err := waitForClearance(ctx, page); err != nil && err != ErrChallengeTimeout {
			return nil, err
		}

		html, err := page.Content()
		if err != nil {
			return nil, err
		}
		return a.listingLinks(html), nil
	})
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, setupErr("discovery", ErrNoDiscovery)
	}

	log.Printf("[%s] discovery: %d listings across result pages", a.cfg.ID, len(urls))
	return urls, nil
}

// collectPagedURLs drives paginated discovery through a fetch callback.
// It stops when a page yields no URLs, when a page yields nothing new
// versus the seen set, or at the page ceiling. A fetch error past page
// one ends discovery with what was already collected.
func collectPagedURLs(ctx context.Context, maxPages int, fetch func(pageNum int) ([]string, error)) ([]string, error) {
	seen := make(map[string]struct{})
	var all []string

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURLs, err := fetch(pageNum)
		if err != nil {
			if pageNum == 1 {
				return nil, setupErr("discovery", err)
			}
			log.Printf("Result page %d failed, stopping discovery: %v", pageNum, err)
			break
		}

		if len(pageURLs) == 0 {
			break
		}

		var fresh int
		for _, u := range pageURLs {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			all = append(all, u)
			fresh++
		}

		// Past the last real page the portal repeats its results.
		if fresh == 0 {
			break
		}
	}

	return all, nil
}

// listingLinks extracts detail-page URLs from a result page snapshot.
func (a *emlakjetAdapter) listingLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find(`a[href*="/ilan/"]`).Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || !strings.Contains(href, "/ilan/") {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = strings.TrimRight(a.cfg.DetailURLPrefix, "/") + href
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})

	return links
}

func (a *emlakjetAdapter) Extract(ctx context.Context, page playwright.Page, url string) (*models.CanonicalListing, error) {
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
	return listing, nil
}

// parseDetail reads the attribute list out of a detail page. The portal
// ships CSS-module class names that change hash suffixes between
// deploys, so matching goes by class prefix with generic fallbacks.
func (a *emlakjetAdapter) parseDetail(url, html string) (*models.CanonicalListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	raw := make(map[string]string)

	doc.Find(`[class*="styles_inner"] ul li`).Each(func(_ int, item *goquery.Selection) {
		key := translate.CleanText(item.Find(`[class*="styles_key"]`).First().Text())
		value := translate.CleanText(item.Find(`[class*="styles_value"]`).First().Text())
		if key != "" && value != "" {
			raw[key] = value
		}
	})

	if len(raw) == 0 {
		doc.Find(".spec-item, .info-item").Each(func(_ int, item *goquery.Selection) {
			key := firstText(item, ".label", ".key", "dt", "th")
			value := firstText(item, ".value", ".val", "dd", "td")
			if key != "" && value != "" {
				raw[key] = value
			}
		})
	}

	if len(raw) == 0 {
		doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
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

	// Area values carry the m² suffix; keep just the number.
	for _, label := range []string{"Brüt Metrekare", "Net Metrekare"} {
		if v, ok := raw[label]; ok {
			if n := translate.FirstNumber(v); n != "" {
				raw[label] = n
			}
		}
	}

	fields := translate.Apply(raw)

	if title := firstText(doc.Selection, "h1", ".listing-title"); title != "" {
		fields[models.FieldTitle] = title
	}
	if location := firstText(doc.Selection, `[class*="location"]`, ".address"); location != "" {
		fields[models.FieldProvince] = location
	}
	if desc := descriptionText(doc); desc != "" {
		fields[models.FieldDescription] = desc
	}

	priceText := firstText(doc.Selection, `[class*="price"]`, ".price")
	price := translate.ParsePrice(priceText)
	if price != nil {
		fields[models.FieldPrice] = priceText
	}

	listingID := fields[models.FieldListingNo]
	if listingID == "" {
		listingID = listingIDFromURL(url)
	}
	if listingID == "" && fields[models.FieldTitle] == "" {
		return nil, fmt.Errorf("page yielded no identifying fields")
	}

	return &models.CanonicalListing{
		Site:         a.cfg.ID,
		ListingID:    listingID,
		URL:          url,
		Fields:       fields,
		PriceNumeric: price,
		Images:       collectImages(doc),
		ExtractedAt:  time.Now().UTC(),
	}, nil
}

// descriptionText joins the paragraphs of the description block.
func descriptionText(doc *goquery.Document) string {
	var parts []string
	doc.Find("#classifiedDescription p").Each(func(_ int, p *goquery.Selection) {
		if txt := translate.CleanText(p.Text()); txt != "" {
			parts = append(parts, txt)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return firstText(doc.Selection, "#classifiedDescription", ".description")
}

func listingIDFromURL(url string) string {
	if m := listingIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}
