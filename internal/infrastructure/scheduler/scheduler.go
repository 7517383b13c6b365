// Package scheduler drives escalation timeouts. The engine schedules a
// deadline per active level; when it passes, the scheduler calls back into
// the engine. The engine itself runs no clock thread.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type timerKey struct {
	expenseID string
	level     int
}

// TimeoutHandler is invoked when a scheduled deadline passes
type TimeoutHandler func(ctx context.Context, expenseID string, level int)

// TimerScheduler implements port.TimeoutScheduler with in-process timers. It
// participates in the worker manager lifecycle so pending timers are stopped
// on shutdown.
type TimerScheduler struct {
	logger  *zap.Logger
	handler TimeoutHandler

	mu      sync.Mutex
	timers  map[timerKey]*time.Timer
	ctx     context.Context
	stopped bool
}

// New creates a timer scheduler. SetHandler must be called before Start.
func New(logger *zap.Logger) *TimerScheduler {
	return &TimerScheduler{
		logger: logger,
		timers: make(map[timerKey]*time.Timer),
		ctx:    context.Background(),
	}
}

// SetHandler sets the timeout callback. Deferred to wiring time because the
// engine and scheduler reference each other.
func (s *TimerScheduler) SetHandler(handler TimeoutHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Name implements worker.Worker
func (s *TimerScheduler) Name() string {
	return "escalation-scheduler"
}

// Start implements worker.Worker
func (s *TimerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.stopped = false
	return nil
}

// Stop implements worker.Worker; stops all pending timers
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.logger.Info("Escalation scheduler stopped")
}

// Schedule implements port.TimeoutScheduler. Scheduling a level that already
// has a pending timer replaces it, which is how escalation resets a deadline.
func (s *TimerScheduler) Schedule(expenseID string, level int, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	key := timerKey{expenseID: expenseID, level: level}
	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.fire(key)
	})

	s.logger.Debug("Escalation timeout scheduled",
		zap.String("expense_id", expenseID),
		zap.Int("level", level),
		zap.Time("deadline", deadline))
}

// Cancel implements port.TimeoutScheduler
func (s *TimerScheduler) Cancel(expenseID string, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{expenseID: expenseID, level: level}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *TimerScheduler) fire(key timerKey) {
	s.mu.Lock()
	delete(s.timers, key)
	handler := s.handler
	ctx := s.ctx
	stopped := s.stopped
	s.mu.Unlock()

	if stopped || handler == nil {
		return
	}
	s.logger.Info("Escalation timeout fired",
		zap.String("expense_id", key.expenseID),
		zap.Int("level", key.level))
	handler(ctx, key.expenseID, key.level)
}
