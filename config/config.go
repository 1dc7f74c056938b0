package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	OpsDBPath   string
	LogLevel    string
	Browser     BrowserConfig
	Scraper     ScraperConfig
	Sites       map[string]*SiteConfig
}

type BrowserConfig struct {
	Headless  bool
	UserAgent string
}

type ScraperConfig struct {
	// DelayMS is the floor on the pause between consecutive detail-page
	// requests. Values below 3000 are clamped up in Load.
	DelayMS  int
	JitterMS int
}

type SiteConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Strategy        string `yaml:"strategy"`
	Schedule        string `yaml:"schedule"`
	Enabled         bool   `yaml:"enabled"`
	SearchURL       string `yaml:"search_url"`
	MapURL          string `yaml:"map_url"`
	APIMatch        string `yaml:"api_match"`
	DetailURLPrefix string `yaml:"detail_url_prefix"`
	MaxPages        int    `yaml:"max_pages"`
}

const minDelayMS = 3000

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpsDBPath:   getEnv("OPS_DB_PATH", "emlaksync.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Browser: BrowserConfig{
			Headless:  getEnv("BROWSER_HEADLESS", "true") == "true",
			UserAgent: os.Getenv("BROWSER_USER_AGENT"),
		},
		Scraper: ScraperConfig{
			DelayMS:  getEnvInt("SCRAPE_DELAY_MS", minDelayMS),
			JitterMS: getEnvInt("SCRAPE_JITTER_MS", 1500),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if cfg.Scraper.DelayMS < minDelayMS {
		cfg.Scraper.DelayMS = minDelayMS
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := getEnv("SITES_DIR", "config/sites")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if site.ID == "" {
			return fmt.Errorf("%s: site id is required", path)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
