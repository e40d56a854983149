// Package scheduler provides cron-based background maintenance for
// ReclaimBot.
//
// Its main job is retention: withdrawn item reports are kept for a grace
// period and then purged for good.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/robfig/cron/v3"
)

// Retention defaults.
const (
	// DefaultRetentionAge is how long withdrawn reports are kept before
	// being purged.
	DefaultRetentionAge = 30 * 24 * time.Hour
	// DefaultRetentionSchedule runs the purge daily at 03:00.
	DefaultRetentionSchedule = "0 3 * * *"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow), with panic
	// recovery so one bad job does not take the scheduler down.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the scheduler; running jobs finish first.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ReportRetentionJob returns a task that purges withdrawn reports older
// than maxAge. Schedule it with AddJob.
func ReportRetentionJob(store itemstore.Store, maxAge time.Duration) func() {
	return func() {
		cutoff := time.Now().UTC().Add(-maxAge)
		purged, err := store.PurgeReports(models.ItemStatusDeleted, cutoff)
		if err != nil {
			slog.Error("Scheduler report retention purge failed", "error", err)
			return
		}
		if purged > 0 {
			slog.Info("Scheduler purged withdrawn reports", "purged", purged, "cutoff", cutoff)
		}
	}
}
