package syncx

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// DefaultLockTimeout bounds every Lock call unless the mutex overrides it.
const DefaultLockTimeout = 5 * time.Second

// ErrLockTimeout is returned when a lock could not be acquired in time.
// In practice this means re-entrant locking or a stuck critical section.
var ErrLockTimeout = errors.New("lock wait timed out")

// Mutex is a mutual-exclusion lock whose acquisition is bounded. A zero
// Mutex is not usable; create one with NewMutex.
type Mutex struct {
	name    string
	timeout time.Duration
	sem     chan struct{}
	logger  *slog.Logger
}

// NewMutex creates a named bounded-wait mutex. The name shows up in the
// diagnostic logged on timeout.
func NewMutex(name string, timeout time.Duration, logger *slog.Logger) *Mutex {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutex{
		name:    name,
		timeout: timeout,
		sem:     make(chan struct{}, 1),
		logger:  logger,
	}
}

// Lock acquires the mutex or fails with ErrLockTimeout after the configured bound.
func (m *Mutex) Lock() error {
	select {
	case m.sem <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return nil
	case <-timer.C:
		m.logger.Error("lock wait exceeded bound",
			"lock", m.name,
			"timeout", m.timeout,
			"caller", caller(2))
		return fmt.Errorf("%s: %w", m.name, ErrLockTimeout)
	}
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics, like sync.Mutex.
func (m *Mutex) Unlock() {
	select {
	case <-m.sem:
	default:
		panic("syncx: unlock of unlocked mutex " + m.name)
	}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
