package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"emlaksync/models"
)

// OpsStore is the local operational database: run history, crawl logs,
// and per-site stats. It lives next to the binary so the daemon can
// report on itself without touching Postgres.
type OpsStore struct {
	db *sql.DB
}

func NewOpsStore(dbPath string) (*OpsStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &OpsStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *OpsStore) Close() error {
	return s.db.Close()
}

func (s *OpsStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY,
		session_id TEXT,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		added INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		unchanged INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER DEFAULT 0,
		total_listings INTEGER DEFAULT 0,
		avg_price REAL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_runs_site ON crawl_runs(site_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_crawl_logs_run ON crawl_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *OpsStore) CreateRun(run *models.CrawlRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO crawl_runs (session_id, site_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.SessionID, run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *OpsStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, status = ?, listings_found = ?,
			added = ?, updated = ?, deleted = ?, unchanged = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound,
		run.Added, run.Updated, run.Deleted, run.Unchanged, run.ErrorsCount, run.ID)
	return err
}

func (s *OpsStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

// RecentLogs returns the newest persisted log lines for a site,
// optionally restricted to one level.
func (s *OpsStore) RecentLogs(siteID string, level models.LogLevel, limit int) ([]models.CrawlLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, run_id, timestamp, level, message, site_id
		FROM crawl_logs WHERE site_id = ?`
	args := []any{siteID}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var (
			entry models.CrawlLog
			runID sql.NullInt64
		)
		if err := rows.Scan(&entry.ID, &runID, &entry.Timestamp,
			&entry.Level, &entry.Message, &entry.SiteID); err != nil {
			return nil, err
		}
		if runID.Valid {
			entry.RunID = &runID.Int64
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// RecordSiteStats rolls run outcome and store counts into the per-site
// summary row.
func (s *OpsStore) RecordSiteStats(siteID string, status models.RunStatus, totalListings int, avgPrice float64) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_runs, total_listings, avg_price)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = site_stats.total_runs + 1,
			total_listings = excluded.total_listings,
			avg_price = excluded.avg_price`,
		siteID, time.Now(), status, totalListings, avgPrice)
	return err
}

func (s *OpsStore) SiteStats(siteID string) (*models.SiteStats, error) {
	row := s.db.QueryRow(`
		SELECT site_id, last_run_at, last_run_status, total_runs, total_listings, avg_price
		FROM site_stats WHERE site_id = ?`, siteID)

	var (
		stats     models.SiteStats
		lastRunAt sql.NullTime
		status    sql.NullString
	)
	err := row.Scan(&stats.SiteID, &lastRunAt, &status, &stats.TotalRuns,
		&stats.TotalListings, &stats.AvgPrice)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastRunAt.Valid {
		stats.LastRunAt = &lastRunAt.Time
	}
	if status.Valid {
		stats.LastRunStatus = models.RunStatus(status.String)
	}
	return &stats, nil
}

// RunHistory returns the most recent runs for a site, newest first.
func (s *OpsStore) RunHistory(siteID string, limit int) ([]models.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, site_id, started_at, finished_at, status,
			listings_found, added, updated, deleted, unchanged, errors_count
		FROM crawl_runs WHERE site_id = ?
		ORDER BY started_at DESC LIMIT ?`, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		var (
			run        models.CrawlRun
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.SessionID, &run.SiteID, &run.StartedAt,
			&finishedAt, &run.Status, &run.ListingsFound,
			&run.Added, &run.Updated, &run.Deleted, &run.Unchanged, &run.ErrorsCount); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
