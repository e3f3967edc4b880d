package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/wu-weather/internal/weather"
)

// cycleTimeout bounds a whole refresh cycle (page + observations API).
const cycleTimeout = 30 * time.Second

// Scheduler periodically refreshes every configured station.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(service *weather.Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		service:   service,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules one job per station and starts the underlying scheduler.
// Each job runs immediately and then every interval; a run is never started
// while the previous one for the same station is still going.
func (s *Scheduler) Start() error {
	stations := s.service.Stations()
	if len(stations) == 0 {
		s.logger.Info("scheduler: no stations configured; nothing to schedule")
		return nil
	}
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	for _, st := range stations {
		_, err := s.scheduler.Every(s.interval).
			Tag(st.Name()).
			SingletonMode().
			StartImmediately().
			Do(s.refresh, st)
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Int("stations", len(stations)),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refresh(st *weather.Station) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	// The station logs failed cycles itself.
	if _, err := st.Refresh(ctx); errors.Is(err, weather.ErrCycleInProgress) {
		s.logger.Info("scheduler: previous cycle still running", zap.String("station", st.Name()))
	}
}
