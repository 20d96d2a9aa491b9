// Package scheduler implements background maintenance tasks for bedrockd,
// including ban expiry, old log cleanup and daily session statistics.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/internal/config"
	"github.com/bedrocknet/bedrocknet/internal/store"
)

// banSweepInterval controls how often expired bans are purged.
const banSweepInterval = time.Hour

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	sessions *store.SessionStore
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, sessions *store.SessionStore) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		sessions: sessions,
	}
}

// Start begins running all scheduled tasks and blocks until the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	go s.runBanSweepLoop(ctx)
	go s.runLogCleanupLoop(ctx)
	go s.runStatsCollectionLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runBanSweepLoop purges expired bans on a fixed interval.
func (s *Scheduler) runBanSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(banSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sessions.CleanExpiredBans(); err != nil {
				log.Warn().Err(err).Msg("ban sweep failed")
			} else {
				log.Debug().Msg("ban sweep completed")
			}
		}
	}
}

// runLogCleanupLoop deletes log files older than the configured backup
// count once per day, starting at the next 4 AM local time.
func (s *Scheduler) runLogCleanupLoop(ctx context.Context) {
	for {
		sleepDuration := time.Until(nextDailyRun(4, 0))
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		log.Debug().Dur("sleep", sleepDuration).Msg("log cleanup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
			s.cleanOldLogs()
		}
	}
}

// cleanOldLogs removes the oldest daily log files beyond MaxBackups.
func (s *Scheduler) cleanOldLogs() {
	logging := s.cfg.GetApplicationData().Logging
	if logging.MaxBackups <= 0 {
		return
	}

	entries, err := os.ReadDir(logging.Directory)
	if err != nil {
		return
	}

	var logFiles []os.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logFiles = append(logFiles, entry)
		}
	}

	// Daily log files carry the date in their name, so lexical order is
	// chronological order.
	if len(logFiles) <= logging.MaxBackups {
		return
	}

	deleted := 0
	for _, entry := range logFiles[:len(logFiles)-logging.MaxBackups] {
		path := filepath.Join(logging.Directory, entry.Name())
		if err := os.Remove(path); err == nil {
			deleted++
			log.Debug().Str("file", entry.Name()).Msg("deleted old log file")
		}
	}

	if deleted > 0 {
		log.Info().Int("deleted_files", deleted).Msg("log cleanup completed")
	}
}

// runStatsCollectionLoop logs daily session statistics.
func (s *Scheduler) runStatsCollectionLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collectStats()
		}
	}
}

// collectStats gathers and logs daily session statistics.
func (s *Scheduler) collectStats() {
	active, err := s.sessions.ActiveSessionCount()
	if err != nil {
		log.Warn().Err(err).Msg("stats collection failed")
		return
	}

	bans, err := s.sessions.Bans()
	if err != nil {
		log.Warn().Err(err).Msg("stats collection failed")
		return
	}

	log.Info().
		Int("active_sessions", active).
		Int("bans", len(bans)).
		Msg("daily stats collected")
}

// nextDailyRun returns the next occurrence of the given local time of day.
func nextDailyRun(hour, minute int) time.Time {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
