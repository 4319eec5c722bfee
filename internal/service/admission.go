package service

import (
	"sync"
	"time"

	"newsdesk/internal/domain"
)

// admission gates sync runs: one at a time, and not again until the cooldown
// since the last completion has passed. It is process-local.
type admission struct {
	mu              sync.Mutex
	cooldown        time.Duration
	lastCompletedAt time.Time
	running         bool
	// idle is closed when the current run releases.
	idle chan struct{}
}

type admissionSnapshot struct {
	running         bool
	lastCompletedAt time.Time
	remaining       time.Duration
}

func newAdmission(cooldown time.Duration) *admission {
	return &admission{cooldown: cooldown}
}

// acquire checks cooldown first, then single-flight, and marks the run started.
func (a *admission) acquire(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if remaining := a.remainingLocked(now); remaining > 0 {
		return &domain.CooldownError{
			Remaining:       remaining,
			LastCompletedAt: a.lastCompletedAt,
		}
	}
	if a.running {
		return domain.ErrSyncAlreadyRunning
	}

	a.running = true
	a.idle = make(chan struct{})
	return nil
}

func (a *admission) release(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = false
	a.lastCompletedAt = now
	if a.idle != nil {
		close(a.idle)
		a.idle = nil
	}
}

// done returns a channel that is closed once no run is in flight.
func (a *admission) done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running && a.idle != nil {
		return a.idle
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (a *admission) snapshot(now time.Time) admissionSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return admissionSnapshot{
		running:         a.running,
		lastCompletedAt: a.lastCompletedAt,
		remaining:       a.remainingLocked(now),
	}
}

func (a *admission) remainingLocked(now time.Time) time.Duration {
	if a.lastCompletedAt.IsZero() {
		return 0
	}
	remaining := a.cooldown - now.Sub(a.lastCompletedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
