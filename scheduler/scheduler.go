// Package scheduler drives recurring crawls from per-site cron
// expressions. A single browser serves the whole process, so at most
// one crawl runs at a time: an overlapping trigger is skipped with a
// log line, never queued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"emlaksync/config"
)

const maxRecentErrors = 50

// RunFunc executes one site crawl. The scheduler only decides when to
// call it.
type RunFunc func(ctx context.Context, siteID string) error

// ConflictError is returned by ForceRun when another crawl holds the
// slot. Scheduled triggers log it at info level and move on.
type ConflictError struct {
	Requested string
	Active    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("site %s skipped: crawl for %s still active", e.Requested, e.Active)
}

// RunError is one entry of the rolling error list.
type RunError struct {
	SiteID string
	At     time.Time
	Err    string
}

type siteState struct {
	LastRunAt time.Time
	TotalRuns int
}

type Scheduler struct {
	cfg  *config.Config
	run  RunFunc
	cron *cron.Cron

	mu         sync.Mutex
	activeSite string
	states     map[string]*siteState
	recentErrs []RunError
}

func New(cfg *config.Config, run RunFunc) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		run:    run,
		cron:   cron.New(),
		states: make(map[string]*siteState),
	}
}

// Start registers every enabled site's cron entry and starts the clock.
// An invalid schedule is a configuration error and aborts startup.
func (s *Scheduler) Start(ctx context.Context) error {
	registered := 0
	for siteID, siteCfg := range s.cfg.Sites {
		if !siteCfg.Enabled || siteCfg.Schedule == "" {
			continue
		}

		id := siteID
		_, err := s.cron.AddFunc(siteCfg.Schedule, func() {
			if err := s.execute(ctx, id); err != nil {
				if conflict, ok := err.(*ConflictError); ok {
					log.Printf("%v", conflict)
					return
				}
				log.Printf("Scheduled crawl for %s failed: %v", id, err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule for %s (%q): %w", siteID, siteCfg.Schedule, err)
		}

		log.Printf("Scheduled %s: %s", siteID, siteCfg.Schedule)
		registered++
	}

	if registered == 0 {
		log.Println("No schedules configured, scheduler idle")
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for an in-flight crawl to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// ForceRun triggers a site immediately, subject to the same single-run
// slot as scheduled crawls.
func (s *Scheduler) ForceRun(ctx context.Context, siteID string) error {
	if _, ok := s.cfg.Sites[siteID]; !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}
	return s.execute(ctx, siteID)
}

func (s *Scheduler) execute(ctx context.Context, siteID string) error {
	if err := s.acquire(siteID); err != nil {
		return err
	}
	defer s.release()

	started := time.Now()
	err := s.run(ctx, siteID)

	s.mu.Lock()
	state, ok := s.states[siteID]
	if !ok {
		state = &siteState{}
		s.states[siteID] = state
	}
	state.LastRunAt = started
	state.TotalRuns++
	if err != nil {
		s.recentErrs = append(s.recentErrs, RunError{SiteID: siteID, At: started, Err: err.Error()})
		if len(s.recentErrs) > maxRecentErrors {
			s.recentErrs = s.recentErrs[len(s.recentErrs)-maxRecentErrors:]
		}
	}
	s.mu.Unlock()

	return err
}

func (s *Scheduler) acquire(siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSite != "" {
		return &ConflictError{Requested: siteID, Active: s.activeSite}
	}
	s.activeSite = siteID
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.activeSite = ""
	s.mu.Unlock()
}

// Active returns the site currently crawling, or "".
func (s *Scheduler) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSite
}

// SiteState reports when a site last ran and how many times it has run
// this process.
func (s *Scheduler) SiteState(siteID string) (lastRunAt time.Time, totalRuns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[siteID]; ok {
		return state.LastRunAt, state.TotalRuns
	}
	return time.Time{}, 0
}

// RecentErrors returns a copy of the rolling error list, oldest first.
func (s *Scheduler) RecentErrors() []RunError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunError, len(s.recentErrs))
	copy(out, s.recentErrs)
	return out
}
