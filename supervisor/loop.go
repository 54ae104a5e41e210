package supervisor

import (
	"context"
	"time"

	"github.com/pithecene-io/thence/config"
	"github.com/pithecene-io/thence/lease"
	"github.com/pithecene-io/thence/log"
	"github.com/pithecene-io/thence/mergequeue"
	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/policy"
	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/question"
	"github.com/pithecene-io/thence/types"
	"github.com/pithecene-io/thence/worker"
)

// Store is the slice of eventstore.Store the control loop needs: append
// new events and replay the log from a given point.
type Store interface {
	Append(ctx context.Context, runID string, event *types.Event) (int64, error)
	LoadSince(ctx context.Context, runID string, afterSeq int64) ([]*types.Event, error)
}

// WorkerRunner spawns one subprocess dispatch and returns its parsed
// result. Satisfied by worker.Run; overridable for testing.
type WorkerRunner interface {
	Run(ctx context.Context, spec worker.Spec) (*worker.Result, error)
}

type defaultWorkerRunner struct{}

func (defaultWorkerRunner) Run(ctx context.Context, spec worker.Spec) (*worker.Result, error) {
	return worker.Run(ctx, spec)
}

// Merger runs one merge attempt and appends its resulting event(s).
// Satisfied by *mergequeue.Queue.
type Merger interface {
	Run(ctx context.Context, runID, taskID string, attempt int, worktree, branch, targetBranch string) (mergequeue.Outcome, error)
}

// Config bundles everything one run of the control loop needs that does
// not change between ticks: identity, pool limits, the agent command, and
// the resolved check commands and worktree provisioning entries.
type Config struct {
	RunID          string
	AppName        string
	RunRoot        string
	SpecPath       string
	SpecSHA256     string
	AgentCommand   []string
	ReviewerPrompt string
	CheckCommands  []string
	Provision      []config.ProvisionFile
	TargetBranch   string // integration branch merges land on; defaults to "main"
	RunConfig      types.RunConfig
	Logger         *log.Logger
	Collector      *metrics.Collector
}

// Loop drives one run's event log through project → derive → schedule →
// dispatch until the run reaches a terminal status or pauses awaiting
// human input. It holds no state between Run calls beyond its
// collaborators; all run state is rebuilt from the event log every tick.
type Loop struct {
	cfg       Config
	layout    layout
	store     Store
	leases    *lease.Manager
	engine    *policy.Engine
	questions *question.Subsystem
	merge     Merger
	checker   Checker
	worker    WorkerRunner

	// tickInterval is how long Run sleeps between ticks that made no
	// progress (no decisions, run not yet terminal). Exposed as a field
	// rather than a constant so tests can shrink it.
	tickInterval time.Duration
}

// New builds a Loop. checker and runner may be nil to use the production
// defaults (CommandChecker and worker.Run).
func New(cfg Config, store Store, leases *lease.Manager, engine *policy.Engine, questions *question.Subsystem, merge Merger, checker Checker, runner WorkerRunner) *Loop {
	if checker == nil {
		checker = CommandChecker{}
	}
	if runner == nil {
		runner = defaultWorkerRunner{}
	}
	if cfg.TargetBranch == "" {
		cfg.TargetBranch = "main"
	}
	return &Loop{
		cfg:          cfg,
		layout:       layout{runRoot: cfg.RunRoot, appName: cfg.AppName},
		store:        store,
		leases:       leases,
		engine:       engine,
		questions:    questions,
		merge:        merge,
		checker:      checker,
		worker:       runner,
		tickInterval: 2 * time.Second,
	}
}

// projectedState loads the full log and folds it into a RunState.
func (l *Loop) projectedState(ctx context.Context) (*projector.RunState, error) {
	events, err := l.store.LoadSince(ctx, l.cfg.RunID, 0)
	if err != nil {
		return nil, types.NewError(types.ErrStorage, "supervisor.projectedState", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	state, err := projector.Project(events)
	if err != nil {
		return state, err
	}
	return state, nil
}

func (l *Loop) append(ctx context.Context, ev *types.Event) (int64, error) {
	ev.RunID = l.cfg.RunID
	return l.store.Append(ctx, l.cfg.RunID, ev)
}

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func rolePtr(r types.ActorRole) *types.ActorRole { return &r }
