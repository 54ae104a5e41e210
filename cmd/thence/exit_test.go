package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error.
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_ExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"success", cli.Exit("", 0), 0},
		{"configuration error", cli.Exit("spec-path required", 1), 1},
		{"translation failure", cli.Exit("plan translation failed", 2), 2},
		{"terminal task failure", cli.Exit("retry budget exhausted", 3), 3},
		{"double supervisor", cli.Exit("a fresh lease exists", 4), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCoder cli.ExitCoder
			if !errors.As(tt.err, &exitCoder) {
				t.Fatalf("error should be cli.ExitCoder")
			}
			if exitCoder.ExitCode() != tt.wantCode {
				t.Errorf("exit code = %d, want %d", exitCoder.ExitCode(), tt.wantCode)
			}
		})
	}
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 3))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	err := errors.New("regular error")

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}

func TestRunsRoot_Default(t *testing.T) {
	t.Setenv("THENCE_RUNS_ROOT", "")
	if got := runsRoot(); got != defaultRunsRoot {
		t.Errorf("runsRoot() = %q, want %q", got, defaultRunsRoot)
	}
}

func TestRunsRoot_EnvOverride(t *testing.T) {
	t.Setenv("THENCE_RUNS_ROOT", "/tmp/custom-runs")
	if got := runsRoot(); got != "/tmp/custom-runs" {
		t.Errorf("runsRoot() = %q, want /tmp/custom-runs", got)
	}
}
