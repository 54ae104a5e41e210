// Package main provides the thence CLI entrypoint.
//
// The CLI is the only execution entrypoint: `run` drives a fresh run
// under supervision; `resume` and `cancel` act on an existing one;
// `inspect`, `questions` and `version` are read-only.
//
// Usage:
//
//	thence <command> [subcommand] [options]
//
// Exit codes for `run`/`resume`:
//   - 0: success (run completed)
//   - 1: configuration or storage error
//   - 2: translation failure or attempt failure propagated as fatal
//   - 3: terminal task failure or policy contradiction
//   - 4: double supervisor (a fresh lease is already held)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/cli/cmd"
	"github.com/pithecene-io/thence/cli/reader"
	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

// defaultRunsRoot is where run directories live unless THENCE_RUNS_ROOT
// overrides it.
const defaultRunsRoot = "./runs"

func runsRoot() string {
	if root := os.Getenv("THENCE_RUNS_ROOT"); root != "" {
		return root
	}
	return defaultRunsRoot
}

func main() {
	root := runsRoot()

	store := eventstore.New(root, eventstore.NoopMirror{})
	reader.SetReader(reader.NewStoreReader(store))

	app := &cli.App{
		Name:           "thence",
		Usage:          "Spec-driven multi-agent run supervisor",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(root),
			cmd.ResumeCommand(root),
			cmd.CancelCommand(root),
			cmd.InspectCommand(root),
			cmd.QuestionsCommand(),
			cmd.AnswerCommand(root),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes set via cli.Exit() so a run's
// outcome kind reaches the shell as a distinct exit code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
