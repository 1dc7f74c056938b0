package storage

import (
	"path/filepath"
	"testing"
	"time"

	"emlaksync/models"
)

func testOpsStore(t *testing.T) *OpsStore {
	t.Helper()
	store, err := NewOpsStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open ops store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testOpsStore(t)

	run := &models.CrawlRun{
		SessionID: "3f5a1c2e-0000-4000-8000-000000000001",
		SiteID:    "hepsiemlak",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 42
	run.Added = 5
	run.Updated = 2
	run.Deleted = 1
	run.Unchanged = 34
	run.ErrorsCount = 0

	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.RunHistory("hepsiemlak", 10)
	if err != nil {
		t.Fatalf("run history: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.ListingsFound != 42 || got.Added != 5 || got.Deleted != 1 {
		t.Errorf("counters not persisted: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not persisted")
	}
}

func TestSiteStatsRollup(t *testing.T) {
	store := testOpsStore(t)

	if err := store.RecordSiteStats("emlakjet", models.RunStatusCompleted, 120, 3150000); err != nil {
		t.Fatalf("record stats: %v", err)
	}
	if err := store.RecordSiteStats("emlakjet", models.RunStatusFailed, 118, 3120000); err != nil {
		t.Fatalf("record stats: %v", err)
	}

	stats, err := store.SiteStats("emlakjet")
	if err != nil {
		t.Fatalf("site stats: %v", err)
	}
	if stats == nil {
		t.Fatal("expected stats row")
	}
	if stats.TotalRuns != 2 {
		t.Errorf("total runs = %d, want 2", stats.TotalRuns)
	}
	if stats.TotalListings != 118 {
		t.Errorf("total listings = %d, want latest count 118", stats.TotalListings)
	}
	if stats.LastRunStatus != models.RunStatusFailed {
		t.Errorf("last run status = %s", stats.LastRunStatus)
	}
	if stats.LastRunAt == nil {
		t.Error("last run time missing")
	}
}

func TestSiteStatsMissing(t *testing.T) {
	store := testOpsStore(t)

	stats, err := store.SiteStats("nope")
	if err != nil {
		t.Fatalf("site stats: %v", err)
	}
	if stats != nil {
		t.Fatal("expected nil for unknown site")
	}
}

func TestLogWithoutRun(t *testing.T) {
	store := testOpsStore(t)

	if err := store.Log(nil, models.LogLevelWarn, "challenge timeout, proceeding", "hepsiemlak"); err != nil {
		t.Fatalf("log: %v", err)
	}
}

func TestRecentLogs(t *testing.T) {
	store := testOpsStore(t)

	runID := int64(7)
	if err := store.Log(&runID, models.LogLevelInfo, "Starting crawl", "emlakjet"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(&runID, models.LogLevelError, "Sync failed: connection reset", "emlakjet"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(nil, models.LogLevelError, "other site noise", "hepsiemlak"); err != nil {
		t.Fatalf("log: %v", err)
	}

	all, err := store.RecentLogs("emlakjet", "", 10)
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 log lines for emlakjet, got %d", len(all))
	}

	errs, err := store.RecentLogs("emlakjet", models.LogLevelError, 10)
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error line, got %d", len(errs))
	}
	entry := errs[0]
	if entry.Message != "Sync failed: connection reset" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.RunID == nil || *entry.RunID != runID {
		t.Errorf("run id not persisted: %v", entry.RunID)
	}
	if entry.SiteID != "emlakjet" {
		t.Errorf("site id = %q", entry.SiteID)
	}
}
