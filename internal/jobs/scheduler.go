package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"imagepacks/internal/service"
)

// Sweeper is the job run on every tick.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(sweeper Sweeper, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		timeout: 30 * time.Minute,
		log:     log,
	}
}

// Start registers the sweep on the six field cron spec and starts ticking.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", spec).Msg("orphan sweep scheduled")
	return nil
}

// Stop halts the schedule and waits for a running sweep, at most until ctx
// is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("sweep still running at shutdown")
	}
}

func (s *Scheduler) runSweep() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("previous sweep still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("orphan sweep failed")
	}
}
