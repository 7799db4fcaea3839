package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ffexec/internal/executor"
	"ffexec/internal/journal"
	"ffexec/internal/process"
	"ffexec/internal/services"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := journal.Entry{
		ID:         "exec-1",
		Argv:       []string{"ffmpeg", "-i", "in.mkv", "out.mp4"},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Outcome:    string(executor.OutcomeSuccess),
		ExitCode:   0,
		Output:     "done",
	}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, "exec-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Join(got.Argv, " ") != "ffmpeg -i in.mkv out.mp4" {
		t.Fatalf("unexpected argv %v", got.Argv)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != 1500*time.Millisecond {
		t.Fatalf("unexpected timing %s / %s", got.StartedAt, got.Duration())
	}
	if got.Outcome != "success" || got.Output != "done" || got.Error != "" {
		t.Fatalf("unexpected entry %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListNewestFirstAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		if err := store.Record(ctx, journal.Entry{
			ID:         id,
			Argv:       []string{"ffmpeg", "-version"},
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
			Outcome:    string(executor.OutcomeFailure),
			ExitCode:   1,
			Error:      "exit status 1",
		}); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "new" || entries[1].ID != "middle" {
		t.Fatalf("unexpected order %+v", entries)
	}

	removed, err := store.Prune(ctx, base.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 rows pruned, got %d", removed)
	}
	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != "new" {
		t.Fatalf("unexpected remaining rows %+v", all)
	}
}

func TestRecordTruncatesOutput(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	long := strings.Repeat("x", 20<<10) + "END"
	now := time.Now()
	if err := store.Record(ctx, journal.Entry{ID: "long", Argv: []string{"ffmpeg"}, StartedAt: now, FinishedAt: now, Output: long}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := store.Get(ctx, "long")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Output) != 8<<10 || !strings.HasSuffix(got.Output, "END") {
		t.Fatalf("expected 8KiB tail ending in END, got %d bytes", len(got.Output))
	}
}

func TestRecorderPersistsExecutorResults(t *testing.T) {
	store := openStore(t)
	exec := executor.New(executor.WithRecorder(store.Recorder(nil)))

	handle, err := exec.Execute(context.Background(), process.NewCommand("/nonexistent/binary", "-x"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := handle.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got, err := store.Get(ctx, handle.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != string(executor.OutcomeFailure) || got.ExitCode != -1 {
		t.Fatalf("unexpected entry %+v", got)
	}
	if !strings.Contains(got.Error, "spawn failure") {
		t.Fatalf("expected spawn failure in error, got %q", got.Error)
	}
	if strings.Join(got.Argv, " ") != "/nonexistent/binary -x" {
		t.Fatalf("unexpected argv %v", got.Argv)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	if err := store.Record(context.Background(), journal.Entry{ID: "kept", Argv: []string{"ffmpeg"}, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "kept"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
