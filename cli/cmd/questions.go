package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/cli/reader"
	"github.com/pithecene-io/thence/cli/render"
)

// QuestionsCommand lists the open questions for a run.
func QuestionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "questions",
		Usage: "List open questions for a run",
		Flags: append(ReadOnlyFlags(), &cli.StringFlag{
			Name:     "run",
			Usage:    "Run ID",
			Required: true,
		}),
		Action: questionsAction,
	}
}

func questionsAction(c *cli.Context) error {
	runID := c.String("run")

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for questions", 1)
	}

	summary, err := reader.GetReader().InspectRun(c.Context, runID)
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}

	return r.Render(summary.OpenQuestions)
}
