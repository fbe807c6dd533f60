// Package jobs runs the periodic background tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"prism/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	jobTimeout    = 5 * time.Minute
	sweepSchedule = "@hourly"
)

// Briefer publishes the end-of-day summaries.
type Briefer interface {
	DailyBrief(ctx context.Context, day string) (int, error)
}

// Sweeper deletes expired refresh sessions.
type Sweeper interface {
	SweepSessions(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	brief   Briefer
	sweeper Sweeper
	log     *zap.Logger
	now     func() time.Time
}

// New registers the daily brief at briefSchedule and the hourly session
// sweep. Jobs do not run until Start.
func New(brief Briefer, sweeper Sweeper, briefSchedule string, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		brief:   brief,
		sweeper: sweeper,
		log:     log,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(briefSchedule, s.runBrief); err != nil {
		return nil, fmt.Errorf("brief schedule %q: %w", briefSchedule, err)
	}
	if _, err := s.cron.AddFunc(sweepSchedule, s.runSweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runBrief() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	day := s.now().In(time.Local).Format(domain.DayLayout)
	n, err := s.brief.DailyBrief(ctx, day)
	if err != nil {
		s.log.Error("daily brief failed", zap.String("day", day), zap.Error(err))
		return
	}
	s.log.Info("daily brief sent", zap.String("day", day), zap.Int("users", n))
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.sweeper.SweepSessions(ctx)
	if err != nil {
		s.log.Error("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired sessions removed", zap.Int64("count", n))
	}
}
