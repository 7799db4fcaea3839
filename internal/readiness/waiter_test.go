package readiness_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ffexec/internal/executor"
	"ffexec/internal/process"
	"ffexec/internal/readiness"
	"ffexec/internal/services"
)

// fakeSource is an IdleSource whose busy periods are driven by the test.
type fakeSource struct {
	mu   sync.Mutex
	idle chan struct{}
}

func newFakeSource(busy bool) *fakeSource {
	s := &fakeSource{idle: make(chan struct{})}
	if !busy {
		close(s.idle)
	}
	return s
}

func (s *fakeSource) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *fakeSource) setIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.idle)
}

func TestWhenReadyIdleRunsSynchronously(t *testing.T) {
	waiter := readiness.New(newFakeSource(false), nil)
	ran := false
	obs := waiter.WhenReady(func() { ran = true }, time.Second)
	if !ran {
		t.Fatal("expected action to run before WhenReady returned")
	}
	select {
	case <-obs.Done():
	default:
		t.Fatal("expected observation to be done")
	}
	if obs.Err() != nil {
		t.Fatalf("unexpected error: %v", obs.Err())
	}
}

func TestWhenReadyRunsOnIdleSignal(t *testing.T) {
	source := newFakeSource(true)
	waiter := readiness.New(source, nil)
	var ran atomic.Bool
	obs := waiter.WhenReady(func() { ran.Store(true) }, 5*time.Second)
	if ran.Load() {
		t.Fatal("action ran while busy")
	}

	source.setIdle()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := obs.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Fatal("expected action to run after idle signal")
	}
}

func TestWhenReadyTimeoutNeverRunsAction(t *testing.T) {
	waiter := readiness.New(newFakeSource(true), nil)
	var ran atomic.Bool
	obs := waiter.WhenReady(func() { ran.Store(true) }, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := obs.Wait(ctx)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("action must not run after timeout")
	}
}

func TestWhenReadyCancel(t *testing.T) {
	source := newFakeSource(true)
	waiter := readiness.New(source, nil)
	var ran atomic.Bool
	obs := waiter.WhenReady(func() { ran.Store(true) }, 5*time.Second)

	obs.Cancel()
	select {
	case <-obs.Done():
	default:
		t.Fatal("expected Done closed after Cancel")
	}
	if !errors.Is(obs.Err(), services.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", obs.Err())
	}

	source.setIdle()
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("action must not run after Cancel")
	}
	obs.Cancel()
}

func TestWhenReadyWithExecutor(t *testing.T) {
	exec := executor.New()
	handle, err := exec.Execute(context.Background(), process.NewCommand("sleep", "5"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	waiter := readiness.New(exec, nil)

	busy := waiter.WhenReady(func() { t.Error("action ran while executor busy") }, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := busy.Wait(ctx); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout while running, got %v", err)
	}

	var ran atomic.Bool
	obs := waiter.WhenReady(func() { ran.Store(true) }, 3*time.Second)
	exec.Kill()
	if err := obs.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Fatal("expected action once executor idle")
	}
	if _, err := handle.Wait(ctx); err != nil {
		t.Fatalf("handle.Wait: %v", err)
	}
}

func TestPollingWaiter(t *testing.T) {
	var running atomic.Bool
	running.Store(true)
	waiter := readiness.NewPollingWaiter(running.Load, 5*time.Millisecond)

	var ran atomic.Bool
	obs := waiter.WhenReady(func() { ran.Store(true) }, 2*time.Second)
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("action ran while probe reports running")
	}
	running.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := obs.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Fatal("expected action after probe went idle")
	}

	running.Store(true)
	timedOut := waiter.WhenReady(func() { t.Error("action ran after timeout") }, 20*time.Millisecond)
	if err := timedOut.Wait(ctx); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	running.Store(false)
	immediate := false
	waiter.WhenReady(func() { immediate = true }, time.Second)
	if !immediate {
		t.Fatal("expected synchronous action when probe reports idle")
	}
}
