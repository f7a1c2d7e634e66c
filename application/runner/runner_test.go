package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/infrastructure/security"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// stubExecutor fails a scenario until it has been run failFor[name] times
type stubExecutor struct {
	mu      sync.Mutex
	failFor map[string]int
	runs    map[string]int
	kinds   map[string]entities.ScenarioKind
	delay   time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func newStub(failFor map[string]int) *stubExecutor {
	return &stubExecutor{
		failFor: failFor,
		runs:    make(map[string]int),
		kinds:   make(map[string]entities.ScenarioKind),
	}
}

func (s *stubExecutor) Run(ctx context.Context, scenario entities.Scenario) entities.ExecutionResult {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.maxActive.Load()
		if n <= peak || s.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.runs[scenario.Name]++
	run := s.runs[scenario.Name]
	s.kinds[scenario.Name] = scenario.Kind
	s.mu.Unlock()

	info := entities.RunInfo{Scenario: scenario.Name, StartedAt: time.Now()}
	if run <= s.failFor[scenario.Name] {
		return entities.Failed(info, entities.Failure{StepIndex: 0, StepName: "navigate", Cause: errBoom})
	}
	return entities.Passed(info)
}

func (s *stubExecutor) Runs(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[name]
}

func newRunner(exec ScenarioExecutor, opts Options) *Runner {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewRunner(exec, security.NewSecurityLayer(logger), opts, logger)
}

func structural(name string, deps ...string) entities.Scenario {
	return entities.Scenario{
		Name:      name,
		Steps:     []entities.Step{entities.Navigate("http://localhost:3000/")},
		DependsOn: deps,
	}
}

func workflow(name string, deps ...string) entities.Scenario {
	return entities.Scenario{
		Name:      name,
		Steps:     []entities.Step{entities.Click(entities.Role("button", "Сохранить отзыв"))},
		DependsOn: deps,
	}
}

func TestRunPassesInInputOrder(t *testing.T) {
	exec := newStub(nil)
	results := newRunner(exec, Options{Parallel: 3}).Run(context.Background(), []entities.Scenario{
		structural("a"), workflow("b", "a"), structural("c"),
	})

	require.Len(t, results, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, results[i].Scenario)
		assert.True(t, results[i].IsPassed(), name)
	}
	assert.Equal(t, entities.KindStructural, exec.kinds["a"])
	assert.Equal(t, entities.KindWorkflow, exec.kinds["b"])
}

func TestFailedDependencySkipsDependents(t *testing.T) {
	exec := newStub(map[string]int{"create": 1})
	results := newRunner(exec, Options{Parallel: 2}).Run(context.Background(), []entities.Scenario{
		workflow("create"), structural("edit", "create"), structural("public", "edit"), structural("other"),
	})

	assert.Equal(t, entities.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 1, results[0].Attempts, "workflows are not retried")

	assert.Equal(t, entities.OutcomeSkipped, results[1].Outcome)
	assert.ErrorIs(t, results[1].Cause, entities.ErrDependencyFailed)
	assert.ErrorContains(t, results[1].Cause, "create failed")

	assert.Equal(t, entities.OutcomeSkipped, results[2].Outcome)
	assert.ErrorContains(t, results[2].Cause, "edit skipped")

	assert.True(t, results[3].IsPassed())
	assert.Zero(t, exec.Runs("edit"))
	assert.Zero(t, exec.Runs("public"))
}

func TestDependencyOutsideRunIsAssumedSatisfied(t *testing.T) {
	results := newRunner(newStub(nil), Options{}).Run(context.Background(), []entities.Scenario{
		structural("edit", "create"),
	})
	assert.True(t, results[0].IsPassed())
}

func TestReadOnlySkipsWorkflows(t *testing.T) {
	exec := newStub(nil)
	results := newRunner(exec, Options{ReadOnly: true}).Run(context.Background(), []entities.Scenario{
		workflow("create"), structural("tabs"),
	})

	assert.Equal(t, entities.OutcomeSkipped, results[0].Outcome)
	assert.ErrorIs(t, results[0].Cause, entities.ErrReadOnly)
	assert.Zero(t, exec.Runs("create"))
	assert.True(t, results[1].IsPassed())
}

func TestStructuralScenariosAreRetried(t *testing.T) {
	exec := newStub(map[string]int{"tabs": 2, "create": 5})
	results := newRunner(exec, Options{StructuralRetries: 2}).Run(context.Background(), []entities.Scenario{
		structural("tabs"), workflow("create"),
	})

	assert.True(t, results[0].IsPassed())
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, 3, exec.Runs("tabs"))

	assert.Equal(t, entities.OutcomeFailed, results[1].Outcome)
	assert.Equal(t, 1, exec.Runs("create"))
}

func TestRetriesExhausted(t *testing.T) {
	exec := newStub(map[string]int{"tabs": 10})
	results := newRunner(exec, Options{StructuralRetries: 1}).Run(context.Background(), []entities.Scenario{structural("tabs")})

	assert.Equal(t, entities.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 2, results[0].Attempts)
	assert.ErrorIs(t, results[0].Cause, errBoom)
}

func TestParallelLimit(t *testing.T) {
	exec := newStub(nil)
	exec.delay = 20 * time.Millisecond

	var scenarios []entities.Scenario
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		scenarios = append(scenarios, structural(name))
	}
	results := newRunner(exec, Options{Parallel: 2}).Run(context.Background(), scenarios)

	assert.Equal(t, Summary{Passed: 6}, Summarize(results))
	assert.LessOrEqual(t, exec.maxActive.Load(), int32(2))
}

func TestCanceledRunSkipsWaitingDependents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocker := &blockingExecutor{release: make(chan struct{}), started: make(chan struct{})}

	var results []entities.ExecutionResult
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		results = newRunner(blocker, Options{Parallel: 2}).Run(ctx, []entities.Scenario{
			structural("a"), structural("b", "a"),
		})
	}()

	<-blocker.started
	cancel()
	close(blocker.release)
	<-finished

	// b either sees the cancellation or the failed dependency first
	assert.Equal(t, entities.OutcomeSkipped, results[1].Outcome)
}

type blockingExecutor struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingExecutor) Run(ctx context.Context, scenario entities.Scenario) entities.ExecutionResult {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return entities.Failed(entities.RunInfo{Scenario: scenario.Name}, entities.Failure{Cause: ctx.Err()})
}

func TestSummary(t *testing.T) {
	info := entities.RunInfo{Scenario: "x"}
	s := Summarize([]entities.ExecutionResult{
		entities.Passed(info),
		entities.Skipped("y", entities.ErrReadOnly),
	})
	assert.Equal(t, Summary{Passed: 1, Skipped: 1}, s)
	assert.True(t, s.OK())

	s = Summarize([]entities.ExecutionResult{entities.Failed(info, entities.Failure{Cause: errBoom})})
	assert.False(t, s.OK())
}
