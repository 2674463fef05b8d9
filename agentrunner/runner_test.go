package agentrunner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/clock"
)

type fakeSink struct {
	mu         sync.Mutex
	heartbeats []Heartbeat
	progress   []Progress
}

func (f *fakeSink) Heartbeat(ctx context.Context, hb Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, hb)
	return nil
}

func (f *fakeSink) Progress(ctx context.Context, p Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
	return nil
}

func (f *fakeSink) progressCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.progress)
}

// fixedRng always returns the same values, keeping step delays and
// resource-usage figures deterministic in tests.
type fixedRng struct{ v float64 }

func (r fixedRng) Float64() float64 { return r.v }
func (r fixedRng) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return 0
}

func newTestRunner(t *testing.T, sink Sink) *Runner {
	t.Helper()
	r := NewRunner("spc-1", AgentBackend, sink, clock.Frozen{At: time.Unix(1000, 0)}, fixedRng{v: 0.5}, nil)
	r.Sleep = func(time.Duration) {} // no real waiting in tests
	return r
}

func TestRun_TaskExecutesAllStepsWithIncreasingProgress(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, sink)

	code := r.Run(context.Background(), "implement the new widget", 0)

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, StateCompleted, r.State())

	require.NotEmpty(t, sink.progress)
	last := sink.progress[len(sink.progress)-1]
	assert.Equal(t, 100, last.Percent, "final step always reaches 100%")
	for i, p := range sink.progress {
		assert.Equal(t, i+1, p.StepIndex)
		assert.Equal(t, len(sink.progress), p.TotalSteps)
	}
}

func TestRun_NoTaskIdlesUntilCancelled(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ExitCode, 1)
	go func() { done <- r.Run(ctx, "", 0) }()

	require.Eventually(t, func() bool { return sink.progressCount() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
		assert.Equal(t, StateTerminated, r.State())
	case <-time.After(time.Second):
		t.Fatal("Run did not return after ctx cancellation")
	}
}

func TestRun_WallClockTimeoutExitsFailure(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, sink)
	// idling Sleep is a no-op, so without a real cancellation the only way
	// out is the context.WithTimeout created inside Run; use a real clock
	// here so the timeout actually elapses.
	r.Clock = clock.System{}

	code := r.Run(context.Background(), "", 5*time.Millisecond)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, StateFailed, r.State())
}

func TestRun_StepPercentIsRoundedStepIndexOverTotal(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, sink)

	code := r.Run(context.Background(), "write and run the test suite", 0)
	require.Equal(t, ExitOK, code)

	require.Len(t, sink.progress, 4)
	assert.Equal(t, 25, sink.progress[0].Percent)
	assert.Equal(t, 50, sink.progress[1].Percent)
	assert.Equal(t, 75, sink.progress[2].Percent)
	assert.Equal(t, 100, sink.progress[3].Percent)
}

func TestRun_EmitsHeartbeatOnInterval(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, sink)
	r.SetHeartbeatInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan ExitCode, 1)
	go func() { done <- r.Run(ctx, "", 0) }()

	require.Eventually(t, func() bool { return len(sink.heartbeats) > 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
