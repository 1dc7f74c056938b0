package scraper

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"

	"emlaksync/config"
)

// Browser owns the playwright runtime and a persistent Chromium context
// shared by every crawl in the process. Persistent profile storage keeps
// anti-bot clearance cookies between sessions.
type Browser struct {
	cfg *config.BrowserConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowser(cfg *config.BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

func (b *Browser) ensure() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	var err error
	b.pw, err = playwright.Run()
	if err != nil {
		return setupErr("playwright", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if b.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(b.cfg.UserAgent)
	}

	b.context, err = b.pw.Chromium.LaunchPersistentContext(userDataDir, opts)
	if err != nil {
		b.pw.Stop()
		b.pw = nil
		return setupErr("browser launch", err)
	}

	b.initialized = true
	return nil
}

// NewPage launches the browser on first use and opens a fresh tab.
func (b *Browser) NewPage() (playwright.Page, error) {
	if err := b.ensure(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	page, err := b.context.NewPage()
	if err != nil {
		return nil, setupErr("new page", err)
	}
	return page, nil
}

func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.context != nil {
		b.context.Close()
		b.context = nil
	}
	if b.pw != nil {
		b.pw.Stop()
		b.pw = nil
	}
	b.initialized = false
}

// navigate loads a URL and waits for DOM content, tolerating the slow
// first paint these portals show under bot screening.
func navigate(page playwright.Page, url string, timeoutMS float64) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}
