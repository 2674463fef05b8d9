package agentrunner

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fleettools/squawk/internal/clock"
)

// HeartbeatInterval is how often a running Runner reports a heartbeat.
const HeartbeatInterval = 15 * time.Second

// MinStepDelay and MaxStepDelay bound the randomized per-step delay.
const (
	MinStepDelay = 2 * time.Second
	MaxStepDelay = 5 * time.Second
)

// Runner drives one spawned specialist's long-lived loop: heartbeat,
// task-step simulation with progress reporting, and graceful shutdown
//. Timing and randomness are injected capabilities so tests
// never sleep for real.
type Runner struct {
	SpecialistID string
	AgentType    AgentType

	Sink  Sink
	Clock clock.Clock
	Rng   clock.Rng
	Sleep func(time.Duration)

	// heartbeatEvery defaults to HeartbeatInterval (the package
	// constant) but is overridable in tests so they don't wait 15s.
	heartbeatEvery time.Duration

	Logger *slog.Logger

	mu      sync.Mutex
	state   State
	started time.Time
}

// NewRunner builds a Runner. sink, clk, and rng must be non-nil; Sleep
// defaults to the real time.Sleep.
func NewRunner(specialistID string, agentType AgentType, sink Sink, clk clock.Clock, rng clock.Rng, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		SpecialistID:   specialistID,
		AgentType:      agentType,
		Sink:           sink,
		Clock:          clk,
		Rng:            rng,
		Sleep:          time.Sleep,
		heartbeatEvery: HeartbeatInterval,
		Logger:         logger,
		state:          StateStarting,
	}
}

// SetHeartbeatInterval overrides the default 15s heartbeat cadence; tests
// use this to avoid waiting on the real interval.
func (r *Runner) SetHeartbeatInterval(d time.Duration) {
	r.heartbeatEvery = d
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run initializes the runner, then executes task (if non-empty) as a
// sequence of progress-reported steps, or else idles emitting randomized
// default activities until ctx is cancelled (SIGINT/SIGTERM via the
// caller's signal.NotifyContext). timeout, if positive, is a wall-clock
// ceiling after which Run returns ExitFailure instead of waiting
// indefinitely for ctx.
func (r *Runner) Run(ctx context.Context, task string, timeout time.Duration) ExitCode {
	r.started = r.Clock.Now()
	r.setState(StateStarting)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.initialize()
	r.setState(StateInitialized)

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		r.heartbeatLoop(hbCtx)
	}()
	defer func() {
		stopHeartbeat()
		hbWG.Wait()
	}()

	var runErr error
	if task != "" {
		r.setState(StateExecuting)
		runErr = r.runTask(ctx, task)
	} else {
		r.setState(StateIdling)
		runErr = r.idleForever(ctx)
	}

	if ctx.Err() != nil {
		if timeout > 0 && r.Clock.Now().Sub(r.started) >= timeout {
			r.setState(StateFailed)
			return ExitFailure
		}
		r.setState(StateTerminated)
		return ExitOK
	}
	if runErr != nil {
		r.setState(StateFailed)
		return ExitFailure
	}

	r.setState(StateCompleted)
	return ExitOK
}

// initialize performs the opaque per-agent-type side-effectful setup
// step. There is nothing to validate; it exists as the named
// lifecycle hook other components may observe via state transitions.
func (r *Runner) initialize() {
	r.Logger.Debug("agent initializing", "specialist_id", r.SpecialistID, "agent_type", r.AgentType)
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendHeartbeat(ctx)
		}
	}
}

func (r *Runner) sendHeartbeat(ctx context.Context) {
	hb := Heartbeat{
		SpecialistID: r.SpecialistID,
		UptimeMS:     r.Clock.Now().Sub(r.started).Milliseconds(),
		Status:       r.State(),
		CPUPercent:   r.Rng.Float64() * 100,
		MemoryMB:     50 + r.Rng.Float64()*200,
	}
	if err := r.Sink.Heartbeat(ctx, hb); err != nil {
		r.Logger.Warn("heartbeat post failed", "specialist_id", r.SpecialistID, "error", err)
	}
}

// runTask executes the keyword-derived step template for task, emitting
// a Progress update after each step.
func (r *Runner) runTask(ctx context.Context, task string) error {
	steps := stepsFor(task)
	total := len(steps)
	for i, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := clock.RangeDuration(r.Rng, MinStepDelay, MaxStepDelay)
		r.Sleep(delay)

		percent := int(math.Round(float64(i+1) / float64(total) * 100))
		p := Progress{
			SpecialistID: r.SpecialistID,
			Step:         step,
			StepIndex:    i + 1,
			TotalSteps:   total,
			Percent:      percent,
		}
		if err := r.Sink.Progress(ctx, p); err != nil {
			r.Logger.Warn("progress post failed", "specialist_id", r.SpecialistID, "error", err)
		}
	}
	return nil
}

// idleForever cycles through defaultActivities, reporting each as
// progress with no fixed total, until ctx is cancelled: it loops
// forever emitting randomized default activities until a shutdown
// signal.
func (r *Runner) idleForever(ctx context.Context) error {
	i := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		activity := defaultActivities[r.Rng.Intn(len(defaultActivities))]
		p := Progress{
			SpecialistID: r.SpecialistID,
			Step:         activity,
			StepIndex:    i + 1,
			TotalSteps:   0,
			Percent:      0,
		}
		if err := r.Sink.Progress(ctx, p); err != nil {
			r.Logger.Warn("progress post failed", "specialist_id", r.SpecialistID, "error", err)
		}
		i++

		delay := clock.RangeDuration(r.Rng, MinStepDelay, MaxStepDelay)
		r.Sleep(delay)
	}
}
