package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/config"
	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/lease"
	"github.com/pithecene-io/thence/log"
	"github.com/pithecene-io/thence/mergequeue"
	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/policy"
	"github.com/pithecene-io/thence/question"
	"github.com/pithecene-io/thence/supervisor"
	"github.com/pithecene-io/thence/types"
)

// CancelCommand interrupts every in-flight attempt on a run and marks it
// cancelled. A cancelled run is terminal: it does not resume.
func CancelCommand(runsRoot string) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a running run",
		ArgsUsage: "<run-id>",
		Action:    cancelAction(runsRoot),
	}
}

func cancelAction(runsRoot string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("run-id required", 1)
		}
		runID := c.Args().First()

		rh, err := rehydrateLoop(c, runsRoot, runID, nil)
		if err != nil {
			return exitFor(err)
		}

		if err := rh.loop.Cancel(c.Context); err != nil {
			return exitFor(err)
		}

		_ = metrics.WriteSnapshot(filepath.Join(rh.runRoot, metrics.SnapshotFileName), rh.collector.Snapshot())
		fmt.Fprintf(c.App.Writer, "run %s cancelled\n", runID)
		return nil
	}
}

// rehydration bundles the Loop a rehydrateLoop call builds along with the
// collaborators its caller needs directly (the event store for a final
// read, the run root and collector for a final metrics snapshot).
type rehydration struct {
	loop      *supervisor.Loop
	store     *eventstore.Store
	runRoot   string
	collector *metrics.Collector
}

// rehydrateLoop replays runID's event log and reconstructs the
// collaborators a Loop needs to act on an already-bootstrapped run, for
// commands (cancel, resume) that do not start a fresh run. cfg is the
// run's original TOML config, needed whenever the returned Loop may
// still dispatch new attempts (resume); cancel passes nil since it only
// interrupts and appends a closing event, never launches a subprocess.
func rehydrateLoop(c *cli.Context, runsRoot, runID string, cfg *config.Config) (*rehydration, error) {
	runConfig := types.DefaultRunConfig()
	logger := log.NewLogger(&types.RunContext{RunID: runID})
	collector := metrics.NewCollector(runID)

	mirror := eventstore.Mirror(eventstore.NoopMirror{})
	if cfg != nil {
		built, err := buildMirror(cfg.Lode, runID, collector)
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "cmd.rehydrateLoop", err)
		}
		mirror = built
	}

	store := eventstore.New(runsRoot, mirror)
	if err := store.Replay(c.Context, runID); err != nil {
		return nil, types.NewError(types.ErrStorage, "cmd.rehydrateLoop", err)
	}

	runRoot := filepath.Join(runsRoot, runID)

	leases := lease.NewManager(runRoot, runConfig.LeaseTTL, defaultLeaseSlack)
	engine := policy.NewEngine()
	questions := question.New(store, question.NoopNotifier{})
	merge := mergequeue.New(mergequeue.CommandMerger{Command: []string{"git", "merge", "--no-ff"}}, store)

	loopCfg := supervisor.Config{
		RunID:     runID,
		AppName:   "thence",
		RunRoot:   runRoot,
		RunConfig: runConfig,
		Logger:    logger,
		Collector: collector,
	}
	if cfg != nil {
		loopCfg.AgentCommand = splitNonEmpty(cfg.Agent.Command, " ")
		loopCfg.ReviewerPrompt = cfg.Prompts.Reviewer
		loopCfg.CheckCommands = cfg.Checks.Commands
		loopCfg.Provision = cfg.Worktree.Provision.Files
	}

	loop := supervisor.New(loopCfg, store, leases, engine, questions, merge, nil, nil)
	return &rehydration{loop: loop, store: store, runRoot: runRoot, collector: collector}, nil
}
