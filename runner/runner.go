// Package runner ties a crawl session to the sync engine and the
// operational record keeping. One Runner serves both the CLI one-shot
// commands and the scheduler.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"emlaksync/config"
	"emlaksync/models"
	"emlaksync/scraper"
	"emlaksync/storage"
	"emlaksync/syncer"
)

type Runner struct {
	cfg     *config.Config
	browser *scraper.Browser
	engine  *syncer.Engine
	pg      *storage.PostgresStore
	ops     *storage.OpsStore
}

func New(cfg *config.Config, browser *scraper.Browser, pg *storage.PostgresStore, ops *storage.OpsStore) *Runner {
	return &Runner{
		cfg:     cfg,
		browser: browser,
		engine:  syncer.NewEngine(pg),
		pg:      pg,
		ops:     ops,
	}
}

// RunSite crawls one site and syncs the snapshot. limit caps the detail
// pass (zero means all). The returned stats are valid even when err is
// non-nil for partially completed runs.
func (r *Runner) RunSite(ctx context.Context, siteID string, limit int) (models.SyncStats, error) {
	var stats models.SyncStats

	siteCfg, ok := r.cfg.Sites[siteID]
	if !ok {
		return stats, fmt.Errorf("unknown site: %s", siteID)
	}
	if !siteCfg.Enabled {
		return stats, fmt.Errorf("site %s is disabled", siteID)
	}

	adapter, err := scraper.NewAdapter(siteCfg)
	if err != nil {
		return stats, err
	}

	run := &models.CrawlRun{
		SessionID: uuid.NewString(),
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := r.ops.CreateRun(run)
	if err != nil {
		log.Printf("Warning: could not record run start: %v", err)
	} else {
		run.ID = runID
	}

	r.opsLog(run, models.LogLevelInfo, fmt.Sprintf("Starting crawl for %s", siteCfg.Name))

	session := scraper.NewSession(adapter, r.browser, &r.cfg.Scraper)
	session.Limit = limit

	result, err := session.Run(ctx)
	if err != nil {
		r.finishRun(run, models.RunStatusFailed, result, stats)
		r.opsLog(run, models.LogLevelError, fmt.Sprintf("Crawl failed: %v", err))
		return stats, err
	}

	for _, failure := range result.Failed {
		r.opsLog(run, models.LogLevelWarn, fmt.Sprintf("Extraction failed: %s: %s", failure.URL, failure.Err))
	}

	// With a capped detail pass the snapshot is partial; deleting the
	// uncrawled rest would be wrong, so the delete phase is skipped by
	// syncing only when the snapshot is complete.
	if limit > 0 {
		r.opsLog(run, models.LogLevelInfo,
			fmt.Sprintf("Limited run (%d listings), storing without deletions", len(result.Succeeded)))
		stats, err = r.upsertOnly(ctx, siteID, result.Succeeded)
	} else {
		stats, err = r.engine.Sync(ctx, siteID, result.Succeeded)
	}
	if err != nil {
		r.finishRun(run, models.RunStatusFailed, result, stats)
		r.opsLog(run, models.LogLevelError, fmt.Sprintf("Sync failed: %v", err))
		return stats, err
	}

	r.finishRun(run, models.RunStatusCompleted, result, stats)
	r.opsLog(run, models.LogLevelInfo, fmt.Sprintf(
		"Run complete: %d crawled, %d failed, +%d ~%d -%d =%d",
		len(result.Succeeded), len(result.Failed),
		stats.Added, stats.Updated, stats.Deleted, stats.Unchanged))

	if count, avg, err := r.pg.SiteCounts(ctx, siteID); err != nil {
		log.Printf("Warning: could not read site counts: %v", err)
	} else if err := r.ops.RecordSiteStats(siteID, models.RunStatusCompleted, count, avg); err != nil {
		log.Printf("Warning: could not record site stats: %v", err)
	}

	return stats, nil
}

// RunAll runs every enabled site in turn. A failing site never blocks
// the others; the first error is reported after all sites have run.
func (r *Runner) RunAll(ctx context.Context) error {
	var firstErr error
	for siteID, siteCfg := range r.cfg.Sites {
		if !siteCfg.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.RunSite(ctx, siteID, 0); err != nil {
			log.Printf("Site %s failed: %v", siteID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("site %s: %w", siteID, err)
			}
		}
	}
	return firstErr
}

// upsertOnly adds or refreshes the crawled subset without touching rows
// outside it.
func (r *Runner) upsertOnly(ctx context.Context, siteID string, listings []models.CanonicalListing) (models.SyncStats, error) {
	var stats models.SyncStats
	for i := range listings {
		listing := &listings[i]
		existing, err := r.pg.GetByURL(ctx, siteID, listing.URL)
		if err != nil {
			stats.Failed++
			continue
		}
		if existing == nil {
			if err := r.pg.Insert(ctx, listing); err != nil {
				stats.Failed++
				continue
			}
			stats.Added++
			continue
		}
		if err := r.pg.Update(ctx, existing.ID, listing); err != nil {
			stats.Failed++
			continue
		}
		stats.Updated++
	}
	return stats, nil
}

func (r *Runner) finishRun(run *models.CrawlRun, status models.RunStatus, result *models.CrawlResult, stats models.SyncStats) {
	if run.ID == 0 {
		return
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	if result != nil {
		run.ListingsFound = len(result.Succeeded) + len(result.Failed)
		run.ErrorsCount = len(result.Failed) + stats.Failed
	}
	run.Added = stats.Added
	run.Updated = stats.Updated
	run.Deleted = stats.Deleted
	run.Unchanged = stats.Unchanged

	if err := r.ops.UpdateRun(run); err != nil {
		log.Printf("Warning: could not record run finish: %v", err)
	}
}

func (r *Runner) opsLog(run *models.CrawlRun, level models.LogLevel, message string) {
	var runID *int64
	if run.ID != 0 {
		runID = &run.ID
	}
	log.Printf("[%s] %s", run.SiteID, message)
	if err := r.ops.Log(runID, level, message, run.SiteID); err != nil {
		log.Printf("Warning: could not persist log line: %v", err)
	}
}
