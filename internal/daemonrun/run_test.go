package daemonrun

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ffexec/internal/daemonctl"
	"ffexec/internal/deps"
	"ffexec/internal/testsupport"
)

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg, Options{LogLevel: "error"})
	}()

	client, err := daemonctl.WaitForClient(cfg.Paths.Socket, 5*time.Second)
	if err != nil {
		cancel()
		t.Fatalf("daemon never answered: %v", err)
	}
	status, err := client.Status()
	client.Close()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status.DaemonStatus)
	}
	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Stat(cfg.Paths.Socket); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, got %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "ffexecd-1.log")
	second := filepath.Join(dir, "ffexecd-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logPointerName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "ffexecd-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffexecd.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file %q", data)
	}
}

func TestWatchBinaryLogsLateResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	cfg.Binary.Path = filepath.Join(dir, "ffmpeg")
	cfg.Binary.ArchPaths = nil
	locator := deps.NewLocator(cfg, deps.WithExecutable(func() (string, error) {
		return filepath.Join(dir, "ffexec"), nil
	}))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	if logDependencySnapshot(logger, locator) {
		t.Fatal("expected missing binary at startup")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		watchBinary(ctx, logger, locator)
		close(done)
	}()

	if err := os.WriteFile(cfg.Binary.Path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	if _, err := locator.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not observe resolution")
	}
	if !strings.Contains(buf.String(), "binary_available") {
		t.Fatalf("expected availability log, got %s", buf.String())
	}
}
