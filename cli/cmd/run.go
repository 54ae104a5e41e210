package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/thence/adapter/redis"
	"github.com/pithecene-io/thence/adapter/webhook"
	"github.com/pithecene-io/thence/cli/reader"
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

// defaultLeaseSlack is added to a run's configured lease TTL before a
// lease is considered stale, absorbing clock skew and GC pauses between
// renewals.
const defaultLeaseSlack = 30 * time.Second

// RunCommand starts a fresh run: translates the spec, opens the
// approval gates, and drives the control loop to completion or a pause.
func RunCommand(runsRoot string) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a specification under supervision",
		ArgsUsage: "<spec-path>",
		Flags:     runFlags(),
		Action:    runAction(runsRoot),
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "run-id", Usage: "Run identifier (default: derived from spec file name)"},
		&cli.StringFlag{Name: "config", Usage: "Path to the TOML run config file", Required: true},
		&cli.StringFlag{Name: "checks", Usage: "Semicolon-separated check commands, overrides [checks].commands"},
		&cli.StringFlag{Name: "target-branch", Usage: "Integration branch merges land on", Value: "main"},
		&cli.StringFlag{Name: "notify-webhook-url", Usage: "POST opened questions to this URL"},
		&cli.StringFlag{Name: "notify-redis-url", Usage: "Publish opened questions to this Redis URL"},
	}
}

func runAction(runsRoot string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("spec-path required", 1)
		}
		specPath := c.Args().First()

		runID := c.String("run-id")
		if runID == "" {
			runID = deriveRunID(specPath)
		}

		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.run", err))
		}

		checkCommands := cfg.Checks.Commands
		if raw := c.String("checks"); raw != "" {
			checkCommands = splitNonEmpty(raw, ";")
		}

		agentCommand := splitNonEmpty(cfg.Agent.Command, " ")
		if len(agentCommand) == 0 {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.run",
				fmt.Errorf("agent command is empty; set [agent].command")))
		}

		notifier, err := buildNotifier(c)
		if err != nil {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.run", err))
		}

		specSHA256, err := specFileSHA256(specPath)
		if err != nil {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.run", err))
		}

		runRoot := filepath.Join(runsRoot, runID)
		runConfig := types.DefaultRunConfig()
		logger := log.NewLogger(&types.RunContext{RunID: runID})
		collector := metrics.NewCollector(runID)

		mirror, err := buildMirror(cfg.Lode, runID, collector)
		if err != nil {
			return exitFor(types.NewError(types.ErrConfiguration, "cmd.run", err))
		}
		store := eventstore.New(runsRoot, mirror)
		store.RegisterRun(runID)

		leases := lease.NewManager(runRoot, runConfig.LeaseTTL, defaultLeaseSlack)
		engine := policy.NewEngine()
		questions := question.New(store, notifier)
		merge := mergequeue.New(mergequeue.CommandMerger{Command: []string{"git", "merge", "--no-ff"}}, store)

		loopCfg := supervisor.Config{
			RunID:          runID,
			AppName:        "thence",
			RunRoot:        runRoot,
			SpecPath:       specPath,
			SpecSHA256:     specSHA256,
			AgentCommand:   agentCommand,
			ReviewerPrompt: cfg.Prompts.Reviewer,
			CheckCommands:  checkCommands,
			Provision:      cfg.Worktree.Provision.Files,
			TargetBranch:   c.String("target-branch"),
			RunConfig:      runConfig,
			Logger:         logger,
			Collector:      collector,
		}

		loop := supervisor.New(loopCfg, store, leases, engine, questions, merge, nil, nil)

		if err := loop.Bootstrap(c.Context); err != nil {
			return exitFor(err)
		}
		runErr := loop.Run(c.Context)

		snapPath := filepath.Join(runRoot, metrics.SnapshotFileName)
		_ = metrics.WriteSnapshot(snapPath, collector.Snapshot())

		if runErr != nil {
			return exitFor(runErr)
		}

		summary, err := reader.NewStoreReader(store).InspectRun(c.Context, runID)
		if err != nil {
			return fmt.Errorf("cmd.run: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "run %s finished with status %s\n", runID, summary.Status)
		return nil
	}
}

func specFileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read spec: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// exitCode maps an ErrorKind to the process exit code the CLI surface
// distinguishes between: 0 is reserved for a completed run by the caller,
// these are only reached on a non-nil error.
func exitCode(kind types.ErrorKind) int {
	switch kind {
	case types.ErrDoubleSupervisor:
		return 4
	case types.ErrTerminalTaskFailure, types.ErrPolicyContradiction:
		return 3
	case types.ErrTranslation, types.ErrAttemptFailure:
		return 2
	default:
		return 1
	}
}

// exitFor wraps err as a cli.ExitCoder carrying the exit code derived
// from its ErrorKind, or a generic code 1 if err has none.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := types.KindOf(err)
	if !ok {
		return cli.Exit(err.Error(), 1)
	}
	return cli.Exit(err.Error(), exitCode(kind))
}

func buildNotifier(c *cli.Context) (question.Notifier, error) {
	webhookURL := c.String("notify-webhook-url")
	redisURL := c.String("notify-redis-url")

	switch {
	case webhookURL != "" && redisURL != "":
		return nil, fmt.Errorf("only one of --notify-webhook-url or --notify-redis-url may be set")
	case webhookURL != "":
		return webhook.New(webhook.Config{URL: webhookURL})
	case redisURL != "":
		return redis.New(redis.Config{URL: redisURL, Channel: redis.DefaultChannel})
	default:
		return question.NoopNotifier{}, nil
	}
}

func deriveRunID(specPath string) string {
	base := filepath.Base(specPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
