// Package housekeeping runs periodic maintenance over the projects root:
// temp files left behind by interrupted saves and stale snapshot artifacts
// are swept on a cron schedule.
package housekeeping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config configures the sweeper.
type Config struct {
	// Root is the projects directory to sweep.
	Root string
	// Schedule is a standard five-field cron expression.
	Schedule string
	// MaxAge is how old a temp file must be before it is removed.
	MaxAge time.Duration
	Logger zerolog.Logger
}

// Service owns the cron schedule and the sweep itself.
type Service struct {
	cfg  Config
	cron *cron.Cron
}

// NewService validates the schedule and prepares the service; nothing runs
// until Start.
func NewService(cfg Config) (*Service, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("projects root is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	s := &Service{
		cfg:  cfg,
		cron: cron.New(),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		if removed, err := s.Sweep(); err != nil {
			cfg.Logger.Warn().Err(err).Msg("Housekeeping sweep failed")
		} else if removed > 0 {
			cfg.Logger.Info().Int("removed", removed).Msg("Housekeeping sweep complete")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins running sweeps on the configured schedule.
func (s *Service) Start() {
	s.cron.Start()
	s.cfg.Logger.Info().Str("schedule", s.cfg.Schedule).Msg("Housekeeping started")
}

// Stop halts the schedule. A sweep already in flight finishes.
func (s *Service) Stop() {
	s.cron.Stop()
	s.cfg.Logger.Info().Msg("Housekeeping stopped")
}

// Sweep removes leftover temp files older than MaxAge and returns how many
// were deleted.
func (s *Service) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.cfg.MaxAge)
	removed := 0

	err := filepath.WalkDir(s.cfg.Root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmp") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.cfg.Logger.Warn().Str("path", path).Err(err).Msg("Failed to remove temp file")
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("walk projects root: %w", err)
	}
	return removed, nil
}
