package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ffexec/internal/api"
	"ffexec/internal/config"
	"ffexec/internal/daemon"
	"ffexec/internal/daemonrun"
	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/ffmpeg"
	"ffexec/internal/ipc"
	"ffexec/internal/logging"
	"ffexec/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfigFile(t, cfg)

	logger := logging.NewNop()
	store := testsupport.MustOpenJournal(t, cfg)
	locator := deps.NewLocator(cfg)
	exec := executor.New(executor.WithRecorder(store.Recorder(logger)))
	client := ffmpeg.NewClient(locator, exec, ffmpeg.WithLibraryVersion("7.0"))
	d, err := daemon.New(cfg, client, locator, store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.Paths.Socket, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{cfg: cfg, socketPath: cfg.Paths.Socket, configPath: configPath}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLISubmitShowHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"submit", "--wait", "--json", "--", "-i", "in.mkv", "out.mp4"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var execution api.Execution
	if err := json.Unmarshal([]byte(out), &execution); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if !execution.Success || !strings.Contains(execution.Output, "args: -i in.mkv out.mp4") {
		t.Fatalf("unexpected execution %+v", execution)
	}

	out, _, err = runCLI(t, []string{"show", execution.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "State:     Success") || !strings.Contains(out, "Exit code: 0") {
		t.Fatalf("unexpected show output: %q", out)
	}

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, shortID(execution.ID)) || !strings.Contains(out, "Success") {
		t.Fatalf("history missing execution: %q", out)
	}
}

func TestCLIStatusKillWaitVersion(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "[OK] Running") || !strings.Contains(out, "Idle") {
		t.Fatalf("unexpected status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"kill"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if !strings.Contains(out, "No command running") {
		t.Fatalf("unexpected kill output: %q", out)
	}

	out, _, err = runCLI(t, []string{"wait", "--timeout", "1s"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !strings.Contains(out, "Executor idle") {
		t.Fatalf("unexpected wait output: %q", out)
	}

	out, _, err = runCLI(t, []string{"version"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "Device:  6.1.1") || !strings.Contains(out, "Library: 7.0") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestCLIStatusOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfigFile(t, cfg)

	out, _, err := runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not running") {
		t.Fatalf("expected offline status, got %q", out)
	}

	_, _, err = runCLI(t, []string{"kill"}, "", configPath)
	if err == nil || !strings.Contains(err.Error(), "ffexec daemon start") {
		t.Fatalf("expected daemon hint, got %v", err)
	}
}

func TestCLIRunLocal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfigFile(t, cfg)

	out, stderr, err := runCLI(t, []string{"run", "--", "-i", "clip.mov"}, "", configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "args: -i clip.mov") {
		t.Fatalf("expected streamed output, got %q", stderr)
	}
	if !strings.Contains(out, "Success") || !strings.Contains(out, "(exit 0)") {
		t.Fatalf("unexpected run summary: %q", out)
	}
}

func TestCLIRunLocalFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBinaryScript("#!/bin/sh\necho boom\nexit 2\n"))
	configPath := testsupport.WriteConfigFile(t, cfg)

	out, _, err := runCLI(t, []string{"run", "--quiet", "--", "-i", "x"}, "", configPath)
	if err == nil {
		t.Fatal("expected failure exit")
	}
	if !strings.Contains(out, "Failure") || !strings.Contains(out, "(exit 2)") {
		t.Fatalf("unexpected run summary: %q", out)
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"A=1", "B=x=y", "C="})
	if err != nil {
		t.Fatalf("parseEnvPairs: %v", err)
	}
	if env["A"] != "1" || env["B"] != "x=y" || env["C"] != "" {
		t.Fatalf("unexpected env %v", env)
	}
	if _, err := parseEnvPairs([]string{"=1"}); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := parseEnvPairs([]string{"NOVALUE"}); err == nil {
		t.Fatal("expected error for missing separator")
	}
}

func TestCLILogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfigFile(t, cfg)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	runLog := filepath.Join(cfg.Paths.LogDir, "ffexecd-1.log")
	if err := os.WriteFile(runLog, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.Symlink(runLog, daemonrun.CurrentLogPath(cfg)); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, "", configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
