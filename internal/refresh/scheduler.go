// Package refresh re-fetches the active event of every loaded calendar on a
// cron schedule and on demand.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koios/skylight-calendar/internal/calendar"
	"github.com/koios/skylight-calendar/pkg/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule refreshes every 15 minutes
const DefaultSchedule = "*/15 * * * *"

// ErrNoCalendars is returned when a refresh request matches nothing
var ErrNoCalendars = errors.New("no calendars match refresh request")

// Calendars is the calendar lookup the scheduler needs
type Calendars interface {
	Calendars() []*calendar.FrameCalendar
	Calendar(uniqueID string) (*calendar.FrameCalendar, error)
	EntryCalendars(entryID string) []*calendar.FrameCalendar
}

// Scheduler runs periodic and requested refreshes through a worker pool
type Scheduler struct {
	cron     *cron.Cron
	pool     *WorkerPool
	source   Calendars
	notifier Notifier
	logger   *zap.Logger
}

// NewScheduler creates a scheduler firing on the given standard cron spec
func NewScheduler(spec string, pool *WorkerPool, source Calendars, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	cronLog := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		pool:     pool,
		source:   source,
		notifier: notifier,
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RefreshAll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// AddFunc schedules an extra housekeeping job on the same cron
func (s *Scheduler) AddFunc(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// Start begins firing the schedule
func (s *Scheduler) Start() {
	s.logger.Info("Starting refresh scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Refresh scheduler stop timed out")
	}
	s.logger.Info("Refresh scheduler stopped")
}

// RefreshAll refreshes every loaded calendar and returns how many changed
func (s *Scheduler) RefreshAll(ctx context.Context) int {
	return s.refresh(ctx, s.source.Calendars())
}

// RefreshCalendar refreshes one calendar and returns its current notice
func (s *Scheduler) RefreshCalendar(ctx context.Context, uniqueID string) (models.ActiveEventNotice, error) {
	cal, err := s.source.Calendar(uniqueID)
	if err != nil {
		return models.ActiveEventNotice{}, err
	}

	result, err := s.pool.Submit(ctx, cal)
	if err != nil {
		return models.ActiveEventNotice{}, err
	}
	s.publish(ctx, result)
	return result.Notice, result.Error
}

// HandleRefresh serves refresh requests read from the Redis stream
func (s *Scheduler) HandleRefresh(ctx context.Context, request models.RefreshRequest) error {
	var targets []*calendar.FrameCalendar
	if request.UniqueID != "" {
		cal, err := s.source.Calendar(request.UniqueID)
		if err == nil {
			targets = append(targets, cal)
		}
	}
	if request.EntryID != "" {
		targets = append(targets, s.source.EntryCalendars(request.EntryID)...)
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: unique_id=%q entry_id=%q", ErrNoCalendars, request.UniqueID, request.EntryID)
	}

	s.refresh(ctx, targets)
	return nil
}

func (s *Scheduler) refresh(ctx context.Context, targets []*calendar.FrameCalendar) int {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)

	for _, cal := range targets {
		wg.Add(1)
		go func(cal *calendar.FrameCalendar) {
			defer wg.Done()

			result, err := s.pool.Submit(ctx, cal)
			if err != nil {
				s.logger.Warn("Refresh not run", zap.String("unique_id", cal.UniqueID()), zap.Error(err))
				return
			}
			if result.Error != nil {
				s.logger.Warn("Refresh failed, keeping previous active event",
					zap.String("unique_id", cal.UniqueID()),
					zap.Error(result.Error))
			}
			if s.publish(ctx, result) {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}(cal)
	}
	wg.Wait()

	s.logger.Debug("Refresh pass complete", zap.Int("calendars", len(targets)), zap.Int("changed", changed))
	return changed
}

func (s *Scheduler) publish(ctx context.Context, result *Result) bool {
	if !result.Changed {
		return false
	}
	if err := s.notifier.PublishActiveEvent(ctx, result.Notice); err != nil {
		s.logger.Error("Failed to publish active event",
			zap.String("unique_id", result.Notice.UniqueID),
			zap.Error(err))
	}
	return true
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
