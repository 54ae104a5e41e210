package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/cli/reader"
	"github.com/pithecene-io/thence/config"
	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/question"
	"github.com/pithecene-io/thence/types"
)

// AnswerCommand answers an open question for a run, resuming the run once
// no other question remains open.
func AnswerCommand(runsRoot string) *cli.Command {
	return &cli.Command{
		Name:  "answer",
		Usage: "Answer an open question for a run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Run ID", Required: true},
			&cli.StringFlag{Name: "question", Usage: "Question ID", Required: true},
			&cli.StringFlag{Name: "text", Usage: "Answer text", Required: true},
			&cli.StringFlag{Name: "config", Usage: "Path to the run's TOML config file, to mirror the answer event per its [lode] section"},
		},
		Action: answerAction(runsRoot),
	}
}

func answerAction(runsRoot string) cli.ActionFunc {
	return func(c *cli.Context) error {
		runID := c.String("run")
		questionID := c.String("question")
		text := c.String("text")

		mirror := eventstore.Mirror(eventstore.NoopMirror{})
		if configPath := c.String("config"); configPath != "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("answer: load config: %w", err)
			}
			built, err := buildMirror(cfg.Lode, runID, metrics.NewCollector(runID))
			if err != nil {
				return fmt.Errorf("answer: %w", err)
			}
			mirror = built
		}

		store := eventstore.New(runsRoot, mirror)
		if err := store.Replay(c.Context, runID); err != nil {
			return fmt.Errorf("answer: load run %s: %w", runID, err)
		}

		summary, err := reader.NewStoreReader(store).InspectRun(c.Context, runID)
		if err != nil {
			return fmt.Errorf("answer: %w", err)
		}

		var target *reader.QuestionSummary
		for i := range summary.OpenQuestions {
			if summary.OpenQuestions[i].QuestionID == questionID {
				target = &summary.OpenQuestions[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("answer: no open question %s on run %s", questionID, runID)
		}

		qs := question.New(store, question.NoopNotifier{})
		lastOpen := len(summary.OpenQuestions) == 1
		if err := qs.Answer(c.Context, runID, questionID, text, types.QuestionKind(target.Kind), target.TaskID, lastOpen); err != nil {
			return fmt.Errorf("answer: %w", err)
		}

		fmt.Fprintf(c.App.Writer, "answered %s on run %s\n", questionID, runID)
		return nil
	}
}
