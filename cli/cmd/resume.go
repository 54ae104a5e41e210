package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/cli/reader"
	"github.com/pithecene-io/thence/config"
	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

// ResumeCommand picks a paused or crashed run back up: clears any stale
// lease left by a prior process, then ticks the control loop forward
// from wherever its event log left off. The same config file the run
// was started with must be supplied again, since a fresh process has no
// other way to recover the agent command, check commands, or worktree
// provisioning entries.
func ResumeCommand(runsRoot string) *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume a paused or crashed run",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to the TOML run config file", Required: true},
		},
		Action: resumeAction(runsRoot),
	}
}

func resumeAction(runsRoot string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("run-id required", 1)
		}
		runID := c.Args().First()

		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.resume", err))
		}

		rh, err := rehydrateLoop(c, runsRoot, runID, cfg)
		if err != nil {
			return exitFor(err)
		}

		if err := rh.loop.Resume(c.Context); err != nil {
			return exitFor(err)
		}

		runErr := rh.loop.Run(c.Context)

		_ = metrics.WriteSnapshot(filepath.Join(rh.runRoot, metrics.SnapshotFileName), rh.collector.Snapshot())

		if runErr != nil {
			return exitFor(runErr)
		}

		summary, err := reader.NewStoreReader(rh.store).InspectRun(c.Context, runID)
		if err != nil {
			return fmt.Errorf("cmd.resume: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "run %s finished with status %s\n", runID, summary.Status)
		return nil
	}
}
