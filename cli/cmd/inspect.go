package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/cli/reader"
	"github.com/pithecene-io/thence/cli/render"
	"github.com/pithecene-io/thence/metrics"
)

// InspectCommand returns the inspect command: a read-only deep view of a
// single run, its tasks and any open questions.
func InspectCommand(runsRoot string) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a run by ID",
		ArgsUsage: "<run-id>",
		Flags: append(TUIReadOnlyFlags(), &cli.BoolFlag{
			Name:  "stats",
			Usage: "Show persisted run metrics instead of run state",
		}),
		Action: inspectAction(runsRoot),
	}
}

func inspectAction(runsRoot string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("run-id required", 1)
		}
		runID := c.Args().First()

		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		if c.Bool("stats") {
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported with --stats", 1)
			}
			snap, err := metrics.ReadSnapshot(filepath.Join(runsRoot, runID, metrics.SnapshotFileName))
			if err != nil {
				return fmt.Errorf("inspect --stats: %w", err)
			}
			return r.Render(snap)
		}

		summary, err := reader.GetReader().InspectRun(c.Context, runID)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}

		if c.Bool("tui") {
			return r.RenderTUI("inspect_run", summary)
		}

		return r.Render(summary)
	}
}
