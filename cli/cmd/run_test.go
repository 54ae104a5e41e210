package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/question"
	"github.com/pithecene-io/thence/types"
)

func TestDeriveRunID(t *testing.T) {
	tests := map[string]string{
		"spec.md":            "spec",
		"/a/b/my-feature.md": "my-feature",
		"plain":              "plain",
	}
	for in, want := range tests {
		if got := deriveRunID(in); got != want {
			t.Errorf("deriveRunID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitNonEmpty(t *testing.T) {
	got := splitNonEmpty(" go test ./... ; go vet ./... ", ";")
	want := []string{"go test ./...", "go vet ./..."}
	if len(got) != len(want) {
		t.Fatalf("splitNonEmpty: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitNonEmpty[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitNonEmpty_AllBlank(t *testing.T) {
	if got := splitNonEmpty("   ", ";"); got != nil {
		t.Errorf("expected nil for an all-blank input, got %v", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		kind types.ErrorKind
		want int
	}{
		{types.ErrConfiguration, 1},
		{types.ErrStorage, 1},
		{types.ErrTranslation, 2},
		{types.ErrAttemptFailure, 2},
		{types.ErrTerminalTaskFailure, 3},
		{types.ErrPolicyContradiction, 3},
		{types.ErrDoubleSupervisor, 4},
	}
	for _, tt := range tests {
		if got := exitCode(tt.kind); got != tt.want {
			t.Errorf("exitCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestExitFor_ClassifiedError(t *testing.T) {
	err := types.NewError(types.ErrDoubleSupervisor, "test", nil)
	wrapped := exitFor(err)

	var ec cli.ExitCoder
	if !errors.As(wrapped, &ec) {
		t.Fatalf("expected an ExitCoder, got %v", wrapped)
	}
	if ec.ExitCode() != 4 {
		t.Errorf("exit code = %d, want 4", ec.ExitCode())
	}
}

func TestExitFor_UnclassifiedError(t *testing.T) {
	wrapped := exitFor(context.DeadlineExceeded)

	var ec cli.ExitCoder
	if !errors.As(wrapped, &ec) {
		t.Fatalf("expected an ExitCoder, got %v", wrapped)
	}
	if ec.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", ec.ExitCode())
	}
}

func TestExitFor_NilIsNil(t *testing.T) {
	if exitFor(nil) != nil {
		t.Error("expected exitFor(nil) to return nil")
	}
}

func TestBuildNotifier_NoFlagsReturnsNoop(t *testing.T) {
	c := newCLIContext(t, nil)
	notifier, err := buildNotifier(c)
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if _, ok := notifier.(question.NoopNotifier); !ok {
		t.Errorf("expected NoopNotifier, got %T", notifier)
	}
}

func TestBuildNotifier_BothURLsConflict(t *testing.T) {
	c := newCLIContext(t, map[string]string{
		"notify-webhook-url": "https://example.com/hook",
		"notify-redis-url":   "redis://localhost:6379",
	})
	if _, err := buildNotifier(c); err == nil {
		t.Fatal("expected an error when both notifier URLs are set")
	}
}

func TestBuildNotifier_WebhookURL(t *testing.T) {
	c := newCLIContext(t, map[string]string{"notify-webhook-url": "https://example.com/hook"})
	notifier, err := buildNotifier(c)
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if notifier == nil {
		t.Fatal("expected a non-nil notifier")
	}
}

// newCLIContext builds a *cli.Context with the given string flags already
// registered and set, for calling action helpers directly without going
// through App.Run (which would invoke the real ExitErrHandler/os.Exit).
func newCLIContext(t *testing.T, values map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	var flags []cli.Flag
	for name := range values {
		flags = append(flags, &cli.StringFlag{Name: name})
	}
	app.Flags = flags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name := range values {
		fs.String(name, "", "")
	}
	for name, val := range values {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}
