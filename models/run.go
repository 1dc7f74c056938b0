package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CrawlRun is the operational record of one crawl+sync session.
type CrawlRun struct {
	ID            int64      `json:"id" db:"id"`
	SessionID     string     `json:"session_id" db:"session_id"`
	SiteID        string     `json:"site_id" db:"site_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	Added         int        `json:"added" db:"added"`
	Updated       int        `json:"updated" db:"updated"`
	Deleted       int        `json:"deleted" db:"deleted"`
	Unchanged     int        `json:"unchanged" db:"unchanged"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// CrawlLog is one persisted log line scoped to a run.
type CrawlLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SiteID    string    `json:"site_id" db:"site_id"`
}

// SiteStats is the per-site summary shown by the stats command.
type SiteStats struct {
	SiteID        string     `json:"site_id" db:"site_id"`
	TotalListings int        `json:"total_listings" db:"total_listings"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus RunStatus  `json:"last_run_status" db:"last_run_status"`
	TotalRuns     int        `json:"total_runs" db:"total_runs"`
	AvgPrice      float64    `json:"avg_price" db:"avg_price"`
}
