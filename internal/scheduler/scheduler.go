// Package scheduler drives periodic animation frames.
//
// The scheduler owns a single timer. Arming it (again) or cancelling it bumps a
// generation counter; every fire carries the generation it was armed under so the
// receiver can discard fires that raced with a cancel.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TickFunc is invoked from the scheduler goroutine on every fire.
type TickFunc func(gen uint64)

// Scheduler manages the render timer.
type Scheduler struct {
	mu     sync.Mutex
	tick   TickFunc
	period time.Duration
	gen    uint64
	armed  bool

	reschedule chan struct{}
}

// New creates a disarmed scheduler.
func New(tick TickFunc) *Scheduler {
	return &Scheduler{
		tick:       tick,
		reschedule: make(chan struct{}, 1),
	}
}

// Arm starts (or restarts) periodic firing and returns the new generation.
func (s *Scheduler) Arm(period time.Duration) uint64 {
	s.mu.Lock()
	s.gen++
	s.period = period
	s.armed = true
	gen := s.gen
	s.mu.Unlock()

	log.Debug().Dur("period", period).Uint64("gen", gen).Msg("Render timer armed")
	s.notifyReschedule()
	return gen
}

// Cancel stops firing. Fires already in flight carry a stale generation.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.armed = false
	s.mu.Unlock()

	log.Debug().Msg("Render timer cancelled")
	s.notifyReschedule()
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Armed reports whether the timer is firing.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Period returns the last armed period.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

func (s *Scheduler) notifyReschedule() {
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
}

// Run starts the scheduler loop
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Msg("Render scheduler started")

	for {
		s.mu.Lock()
		armed, period, gen := s.armed, s.period, s.gen
		s.mu.Unlock()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if armed {
			timer = time.NewTimer(period)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Info().Msg("Render scheduler stopping")
			return nil

		case <-s.reschedule:
			if timer != nil {
				timer.Stop()
			}
			continue

		case <-fire:
			s.tick(gen)
		}
	}
}
