package services_test

import (
	"errors"
	"strings"
	"testing"

	"ffexec/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSpawn, "process", "start", "exec failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSpawn) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"process", "start", "exec failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestSynchronousClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrAlreadyRunning, "executor", "execute", "", nil), true},
		{services.Wrap(services.ErrEmptyCommand, "executor", "execute", "", nil), true},
		{services.Wrap(services.ErrUnsupported, "deps", "resolve", "", nil), true},
		{services.Wrap(services.ErrTimeout, "executor", "wait", "", nil), false},
		{services.Wrap(services.ErrSpawn, "process", "start", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.Synchronous(tc.err); got != tc.want {
			t.Fatalf("Synchronous(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
