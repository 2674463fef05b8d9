package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fleettools/squawk/checkpoint"
	"github.com/fleettools/squawk/conflict"
	"github.com/fleettools/squawk/decomposition"
	"github.com/fleettools/squawk/decomposition/codebase"
	"github.com/fleettools/squawk/decomposition/planner"
	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/config"
	"github.com/fleettools/squawk/internal/dbsql"
	"github.com/fleettools/squawk/internal/ids"
	"github.com/fleettools/squawk/internal/retention"
	"github.com/fleettools/squawk/lockmgr"
	"github.com/fleettools/squawk/mailbox"
	"github.com/fleettools/squawk/missionstore"
	"github.com/fleettools/squawk/model"
	"github.com/fleettools/squawk/recovery"
	"github.com/fleettools/squawk/scheduler"
	"github.com/fleettools/squawk/specialists"

	_ "github.com/fleettools/squawk/llm/providers" // register providers
)

// App wires every component together and owns their lifecycles: the
// coordinator keeps a small number of long-lived background workers,
// in the same NewApp/Start/Shutdown shape throughout — same embedded-or-
// external NATS choice, same "create components, then start background
// workers, then wait for shutdown" ordering.
type App struct {
	cfg *config.Config

	db *sqlx.DB

	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	events      *eventstore.Store
	locks       *lockmgr.Manager
	missions    *missionstore.Store
	specialists *specialists.Registry
	mailbox     *mailbox.Bus
	checkpoints *checkpoint.Store

	pipeline  *decomposition.Pipeline
	scheduler *scheduler.Scheduler
	planner   *recovery.Planner
	executor  *recovery.Executor

	reaper           *lockmgr.Reaper
	heartbeatWatcher *specialists.HeartbeatWatcher
	conflictSweeper  *conflict.Sweeper
	checkpointPruner *checkpoint.Pruner
	retentionPruner  *retention.Pruner

	stopWorkers context.CancelFunc
	wg          sync.WaitGroup
}

// NewApp builds App's components without starting any background
// workers or network listeners; call Start to bring it up.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := dbsql.Open(filepath.Join(cfg.DataDir, "squawk.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{cfg: cfg, db: db}
	return a, nil
}

// Start connects to NATS (embedded or external), then wires every
// component over the shared db/NATS handles, then launches the five
// supervised background workers.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	clk := clock.System{}
	publisher := eventstore.NewJetStreamPublisher(a.js)

	a.events = eventstore.New(a.db, publisher, clk)
	a.locks = lockmgr.New(a.db, a.events, clk, nil)
	a.missions = missionstore.New(a.db, a.events, clk)
	a.specialists = specialists.New(a.db, a.events, clk)

	bus, err := mailbox.New(ctx, a.js, clk)
	if err != nil {
		return fmt.Errorf("init mailbox: %w", err)
	}
	a.mailbox = bus

	a.checkpoints = checkpoint.New(a.db, clk, checkpointDir(a.cfg))

	registry := model.NewDefaultRegistry()
	planClient := planner.NewClient(registry)
	a.pipeline = &decomposition.Pipeline{
		FileLister:    codebase.WalkLister{},
		Planner:       planClient,
		ParseResponse: planner.ParseResponse,
		BuildPrompt:   planner.BuildPrompt,
	}

	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable path: %w", err)
	}
	launcher := &ProcessLauncher{
		BinaryPath:     binaryPath,
		CoordinatorURL: fmt.Sprintf("http://localhost:%d/api/v1", a.cfg.Port),
		SortieTimeout:  2 * time.Hour,
	}
	lockTimeout := 30 * time.Minute
	a.scheduler = scheduler.New(a.locks, a.missions, a.mailbox, a.events, launcher, lockTimeout)

	a.planner = recovery.NewPlanner(a.checkpoints, a.locks, a.specialists, clk)
	a.executor = recovery.NewExecutor(a.missions, a.locks, a.events, clk, filepath.Join(a.cfg.DataDir, "recovery.log"), time.Hour)

	a.startWorkers(clk)

	slog.Info("components initialized")
	return nil
}

func checkpointDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "checkpoints")
}

// SubmitMission runs the full decomposition pipeline for task against
// repoRoot, persists the resulting mission and sorties, and hands the
// independent/dependent sorties to the scheduler for launch, fanning
// out to many sorties instead of a single task.
func (a *App) SubmitMission(ctx context.Context, task, repoRoot string) (*missionstore.Mission, error) {
	plan, err := a.pipeline.Run(ctx, task, repoRoot)
	if err != nil {
		return nil, fmt.Errorf("decompose mission: %w", err)
	}

	mission := &missionstore.Mission{
		Title:       plan.Tree.Mission.Title,
		Description: plan.Tree.Mission.Description,
		Strategy:    missionstore.Strategy(plan.Strategy.Selected),
		Priority:    missionstore.PriorityMedium,
	}
	if err := a.missions.CreateMission(ctx, mission); err != nil {
		return nil, fmt.Errorf("create mission: %w", err)
	}

	sortieIDs := make([]string, len(plan.Tree.Sorties))
	for i := range plan.Tree.Sorties {
		sortieIDs[i] = ids.New(ids.Sortie)
	}

	sorties := make([]*missionstore.Sortie, len(plan.Tree.Sorties))
	for i, planned := range plan.Tree.Sorties {
		deps := make([]string, len(planned.Dependencies))
		for j, depIdx := range planned.Dependencies {
			deps[j] = sortieIDs[depIdx]
		}
		sortie := &missionstore.Sortie{
			ID:                   sortieIDs[i],
			Title:                planned.Title,
			Description:          planned.Description,
			Priority:             missionstore.PriorityMedium,
			Complexity:           missionstore.Complexity(planned.Complexity),
			EstimatedEffortHours: planned.EstimatedEffortHours,
			Files:                planned.Files,
			Dependencies:         deps,
		}
		if err := a.missions.CreateSortie(ctx, sortie, mission.ID); err != nil {
			return nil, fmt.Errorf("create sortie %q: %w", planned.Title, err)
		}
		sorties[i] = sortie
	}

	if _, err := a.scheduler.Run(ctx, sorties); err != nil {
		return mission, fmt.Errorf("schedule sorties: %w", err)
	}
	return mission, nil
}

// startWorkers launches the five supervised background workers, each
// on its own goroutine tracked by a.wg so Shutdown can wait for all of
// them to exit before returning.
func (a *App) startWorkers(clk clock.Clock) {
	a.reaper = lockmgr.NewReaper(a.locks, a.cfg.Timing.ReaperInterval, nil)
	a.heartbeatWatcher = specialists.NewHeartbeatWatcher(a.specialists, a.cfg.Timing.HeartbeatInterval, a.cfg.Timing.HeartbeatTimeout, nil)
	a.conflictSweeper = conflict.NewSweeper(a.specialists, a.events, clk, a.cfg.Timing.ConflictSweep, conflict.Severity(a.cfg.Conflict.AutoResolveThreshold), nil)

	if pruner, err := checkpoint.NewPruner(a.checkpoints, time.Duration(a.cfg.Retention.CheckpointDays)*24*time.Hour, "", nil); err == nil {
		a.checkpointPruner = pruner
	} else {
		slog.Warn("checkpoint pruner disabled", "error", err)
	}

	windows := retention.Windows{
		Metrics:  time.Duration(a.cfg.Retention.MetricsDays) * 24 * time.Hour,
		Conflict: time.Duration(a.cfg.Conflict.RetentionDays) * 24 * time.Hour,
		Alert:    time.Duration(a.cfg.Retention.AlertDays) * 24 * time.Hour,
	}
	if pruner, err := retention.NewPruner(a.db, clk, windows, "", nil); err == nil {
		a.retentionPruner = pruner
	} else {
		slog.Warn("retention pruner disabled", "error", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel

	a.wg.Add(3)
	go func() { defer a.wg.Done(); a.reaper.Run(workerCtx) }()
	go func() { defer a.wg.Done(); a.heartbeatWatcher.Run(workerCtx) }()
	go func() { defer a.wg.Done(); a.conflictSweeper.Run(workerCtx) }()

	if a.checkpointPruner != nil {
		a.checkpointPruner.Start()
	}
	if a.retentionPruner != nil {
		a.retentionPruner.Start()
	}
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		opts := &server.Options{Port: -1, JetStream: true, NoLog: true, NoSigs: true}
		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}
		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

// Shutdown stops every background worker (waiting for in-flight sweeps
// to finish via a.wg), then tears down NATS and the database.
func (a *App) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		if a.stopWorkers != nil {
			a.stopWorkers()
		}
		a.wg.Wait()
		if a.checkpointPruner != nil {
			a.checkpointPruner.Stop()
		}
		if a.retentionPruner != nil {
			a.retentionPruner.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("shutdown timed out waiting for background workers")
	}

	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
	if a.db != nil {
		a.db.Close()
	}
}
