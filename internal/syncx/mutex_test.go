package syncx

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMutex_LockUnlock(t *testing.T) {
	m := NewMutex("test", 50*time.Millisecond, quietLogger())
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	if m.TryLock() {
		t.Fatal("TryLock() succeeded on held mutex")
	}
	m.Unlock()
	if !m.TryLock() {
		t.Fatal("TryLock() failed on free mutex")
	}
	m.Unlock()
}

func TestMutex_ReentrantLockTimesOut(t *testing.T) {
	m := NewMutex("reentrant", 20*time.Millisecond, quietLogger())
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	defer m.Unlock()

	err := m.Lock()
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() = %v, want ErrLockTimeout", err)
	}
}

func TestMutex_WaiterAcquiresAfterRelease(t *testing.T) {
	m := NewMutex("handoff", time.Second, quietLogger())
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- m.Lock()
	}()

	time.Sleep(10 * time.Millisecond)
	m.Unlock()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiter Lock() error: %v", err)
		}
		m.Unlock()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the mutex")
	}
}

func TestMutex_UnlockOfUnlockedPanics(t *testing.T) {
	m := NewMutex("panic", 0, quietLogger())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m.Unlock()
}
