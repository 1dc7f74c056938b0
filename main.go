package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"emlaksync/config"
	"emlaksync/logging"
	"emlaksync/models"
	"emlaksync/runner"
	"emlaksync/scheduler"
	"emlaksync/scraper"
	"emlaksync/storage"
)

var (
	runSite   = flag.String("run", "", "Crawl one site and exit (site id)")
	forceSite = flag.String("force", "", "Alias for -run; kept for operator muscle memory")
	runAll    = flag.Bool("run-all", false, "Crawl every enabled site once and exit")
	limit     = flag.Int("limit", 0, "Cap the detail pass at N listings (with -run)")
	showStat  = flag.Bool("stats", false, "Print per-site stats and exit")
)

func main() {
	flag.Parse()

	logFile, err := logging.Setup("emlaksync.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting emlaksync...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, %s)", site.Name, id, site.Strategy)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ops, err := storage.NewOpsStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open ops database: %v", err)
	}
	defer ops.Close()

	if *showStat {
		printStats(cfg, ops)
		return
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pg.Close()

	browser := scraper.NewBrowser(&cfg.Browser)
	defer browser.Close()

	r := runner.New(cfg, browser, pg, ops)

	site := *runSite
	if site == "" {
		site = *forceSite
	}

	switch {
	case site != "":
		stats, err := r.RunSite(ctx, site, *limit)
		fmt.Printf("%s: +%d ~%d -%d =%d, %d failed\n",
			site, stats.Added, stats.Updated, stats.Deleted, stats.Unchanged, stats.Failed)
		if err != nil {
			if scraper.IsSetup(err) {
				log.Fatalf("Crawl could not start: %v", err)
			}
			log.Printf("Crawl finished with errors: %v", err)
		}
		return

	case *runAll:
		if err := r.RunAll(ctx); err != nil {
			if scraper.IsSetup(err) {
				log.Fatalf("Crawl could not start: %v", err)
			}
			log.Printf("Run finished with errors: %v", err)
		}
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, func(ctx context.Context, siteID string) error {
		_, err := r.RunSite(ctx, siteID, 0)
		return err
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func printStats(cfg *config.Config, ops *storage.OpsStore) {
	for id := range cfg.Sites {
		stats, err := ops.SiteStats(id)
		if err != nil {
			log.Printf("Stats for %s unavailable: %v", id, err)
			continue
		}
		if stats == nil {
			fmt.Printf("%s: no runs yet\n", id)
			continue
		}

		lastRun := "never"
		if stats.LastRunAt != nil {
			lastRun = stats.LastRunAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s: %d listings, %d runs, last %s (%s), avg price %.0f\n",
			id, stats.TotalListings, stats.TotalRuns, lastRun, stats.LastRunStatus, stats.AvgPrice)

		runs, err := ops.RunHistory(id, 5)
		if err != nil {
			continue
		}
		for _, run := range runs {
			fmt.Printf("  %s  %-9s  found %d  +%d ~%d -%d =%d  errors %d\n",
				run.StartedAt.Format("01-02 15:04"), run.Status, run.ListingsFound,
				run.Added, run.Updated, run.Deleted, run.Unchanged, run.ErrorsCount)
		}

		logs, err := ops.RecentLogs(id, models.LogLevelError, 3)
		if err != nil {
			continue
		}
		for _, entry := range logs {
			fmt.Printf("  ! %s  %s\n", entry.Timestamp.Format("01-02 15:04"), entry.Message)
		}
	}
}
