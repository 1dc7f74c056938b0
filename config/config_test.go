package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSiteYAML(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadSites(t *testing.T) {
	dir := t.TempDir()
	writeSiteYAML(t, dir, "hepsiemlak.yaml", `
id: hepsiemlak
name: Hepsiemlak
strategy: api
schedule: "0 10,16,22 * * *"
enabled: true
map_url: "https://www.hepsiemlak.com/harita/konyaalti-satilik"
api_match: "/api/realty-map/"
detail_url_prefix: "https://www.hepsiemlak.com/antalya-konyaalti-satilik/daire"
`)
	writeSiteYAML(t, dir, "notes.txt", "not a site config")

	t.Setenv("SITES_DIR", dir)
	t.Setenv("SCRAPE_DELAY_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	site, ok := cfg.Sites["hepsiemlak"]
	if !ok {
		t.Fatalf("hepsiemlak not loaded, got %v", cfg.Sites)
	}
	if site.Strategy != "api" {
		t.Errorf("strategy = %s", site.Strategy)
	}
	if site.Schedule != "0 10,16,22 * * *" {
		t.Errorf("schedule = %s", site.Schedule)
	}
	if !site.Enabled {
		t.Error("site should be enabled")
	}
	if site.APIMatch != "/api/realty-map/" {
		t.Errorf("api_match = %s", site.APIMatch)
	}
}

func TestLoadRejectsSiteWithoutID(t *testing.T) {
	dir := t.TempDir()
	writeSiteYAML(t, dir, "broken.yaml", "name: No ID Here\n")

	t.Setenv("SITES_DIR", dir)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for site config without id")
	}
}

func TestLoadClampsRequestDelay(t *testing.T) {
	t.Setenv("SITES_DIR", t.TempDir())
	t.Setenv("SCRAPE_DELAY_MS", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scraper.DelayMS != minDelayMS {
		t.Errorf("delay = %d, want clamp to %d", cfg.Scraper.DelayMS, minDelayMS)
	}
}

func TestLoadMissingSitesDirIsFine(t *testing.T) {
	t.Setenv("SITES_DIR", filepath.Join(t.TempDir(), "does-not-exist"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Sites) != 0 {
		t.Errorf("expected no sites, got %d", len(cfg.Sites))
	}
}
