package platform

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoloop/internal/evo"
	"evoloop/internal/metrics"
	"evoloop/internal/model"
	"evoloop/internal/problem"
	"evoloop/internal/random"
	"evoloop/internal/stats"
	"evoloop/internal/storage"
)

var errFlaky = errors.New("evaluator exploded")

// flakyProblem evaluates the initial population and fails on the first
// evaluation of generation one.
func flakyProblem() problem.Definition[int] {
	return problem.Definition[int]{
		ID:       "flaky",
		Summary:  "fails during the first generation",
		Defaults: evo.Settings{Size: 4, K: 2, M: 1, N: 1, CO: 1},
		Operators: func(r *random.Rand) evo.Operators[int] {
			calls := 0
			return evo.Operators[int]{
				Generator: func() (int, error) { return r.IntRange(0, 9), nil },
				Evaluator: func(x int) (float64, error) {
					calls++
					if calls > 4 {
						return 0, errFlaky
					}
					return float64(x), nil
				},
				Crossover:  func(a, b int) (int, error) { return max(a, b), nil },
				Mutator:    func(x int) (int, error) { return x + 1, nil },
				Terminator: evo.MaxGenerations[int](5),
			}
		},
	}
}

// infeasibleProblem scores every individual at negative infinity.
func infeasibleProblem() problem.Definition[int] {
	return problem.Definition[int]{
		ID:       "infeasible",
		Summary:  "every candidate violates its constraints",
		Defaults: evo.Settings{Size: 4, K: 2, M: 1, N: 1, CO: 1},
		Operators: func(r *random.Rand) evo.Operators[int] {
			return evo.Operators[int]{
				Generator:  func() (int, error) { return r.IntRange(-5, 9), nil },
				Evaluator:  func(int) (float64, error) { return math.Inf(-1), nil },
				Crossover:  func(a, b int) (int, error) { return a + b, nil },
				Mutator:    func(x int) (int, error) { return -x, nil },
				Terminator: evo.MaxGenerations[int](3),
			}
		},
	}
}

var errOpaque = errors.New("opaque individual")

type opaque int

func (opaque) MarshalJSON() ([]byte, error) {
	return nil, errOpaque
}

func opaqueProblem() problem.Definition[opaque] {
	return problem.Definition[opaque]{
		ID:       "opaque",
		Summary:  "individuals that refuse to encode",
		Defaults: evo.Settings{Size: 4, K: 2, M: 1, N: 1, CO: 1},
		Operators: func(r *random.Rand) evo.Operators[opaque] {
			return evo.Operators[opaque]{
				Generator:  func() (opaque, error) { return opaque(r.IntRange(0, 9)), nil },
				Evaluator:  func(x opaque) (float64, error) { return float64(x), nil },
				Crossover:  func(a, b opaque) (opaque, error) { return max(a, b), nil },
				Mutator:    func(x opaque) (opaque, error) { return x + 1, nil },
				Terminator: evo.MaxGenerations[opaque](2),
			}
		},
	}
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	r := NewRunner(cfg)
	require.NoError(t, r.Init(context.Background()))
	return r
}

func TestRunnerRequiresInit(t *testing.T) {
	r := NewRunner(Config{Store: storage.NewMemoryStore()})
	_, err := r.Run(context.Background(), RunRequest{Problem: "origin"})
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = r.Runs(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.Error(t, NewRunner(Config{}).Init(context.Background()))
}

func TestRunnerRunPersistsRecordAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	r := newTestRunner(t, Config{Metrics: m})

	summary, err := r.Run(ctx, RunRequest{Problem: "onemax", Seed: 1, MaxGenerations: 20})
	require.NoError(t, err)

	rec := summary.Record
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "onemax", rec.Problem)
	assert.Equal(t, model.RunStatusCompleted, rec.Status)
	assert.Equal(t, 20, rec.MaxGenerations)
	assert.LessOrEqual(t, rec.Generations, 20)
	assert.Len(t, summary.Diagnostics, rec.Generations+1)
	assert.Equal(t, rec.BestFitness, summary.Diagnostics[len(summary.Diagnostics)-1].BestFitness)

	var best string
	require.NoError(t, json.Unmarshal(rec.Best, &best))
	assert.Len(t, best, 64)

	stored, err := r.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.CurrentSchemaVersion, stored.SchemaVersion)
	assert.Equal(t, storage.CurrentCodecVersion, stored.CodecVersion)
	assert.Equal(t, rec.BestFitness, stored.BestFitness)

	diagnostics, err := r.Diagnostics(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.Diagnostics, diagnostics)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("onemax", "completed")))
	assert.Equal(t, float64(rec.Generations), testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("onemax")))
}

func TestRunnerUsesProblemDefaultsAndRequestedID(t *testing.T) {
	r := newTestRunner(t, Config{})
	summary, err := r.Run(context.Background(), RunRequest{RunID: "run-1", Problem: "origin", Seed: 4, MaxGenerations: 5})
	require.NoError(t, err)

	defaults := problem.Origin(problem.DefaultOriginOptions()).DefaultSettings()
	assert.Equal(t, "run-1", summary.Record.ID)
	assert.Equal(t, toRunSettings(defaults), summary.Record.Settings)
}

func TestRunnerRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r := newTestRunner(t, Config{Store: store})

	_, err := r.Run(ctx, RunRequest{Problem: "missing"})
	require.ErrorIs(t, err, problem.ErrProblemNotFound)

	_, err = r.Run(ctx, RunRequest{Problem: "origin", Settings: evo.Settings{Size: 5, K: 5, N: 5}})
	require.ErrorIs(t, err, evo.ErrInvalidSettings)

	_, err = r.Run(ctx, RunRequest{Problem: "origin", Workers: -2})
	require.Error(t, err)

	runs, err := r.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunnerRecordsFailedRun(t *testing.T) {
	ctx := context.Background()
	reg := problem.NewRegistry()
	require.NoError(t, reg.Register(flakyProblem()))
	m := metrics.New()
	r := newTestRunner(t, Config{Problems: reg, Metrics: m})

	summary, err := r.Run(ctx, RunRequest{RunID: "flaky-1", Problem: "flaky", Seed: 2})
	require.ErrorIs(t, err, errFlaky)

	var opErr *evo.OperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, evo.OpEvaluate, opErr.Op)

	assert.Equal(t, model.RunStatusFailed, summary.Record.Status)
	assert.Len(t, summary.Diagnostics, 1)

	stored, err := r.GetRun(ctx, "flaky-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, errFlaky.Error())
	assert.Equal(t, 0, stored.Generations)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("flaky", "failed")))
}

func TestRunnerRecordsCanceledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestRunner(t, Config{})

	_, err := r.Run(ctx, RunRequest{RunID: "canceled", Problem: "origin"})
	require.ErrorIs(t, err, context.Canceled)

	stored, err := r.GetRun(context.Background(), "canceled")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestRunnerWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, Config{ArtifactsDir: dir})

	summary, err := r.Run(context.Background(), RunRequest{Problem: "onemax", Seed: 3, MaxGenerations: 5})
	require.NoError(t, err)
	require.NotEmpty(t, summary.ArtifactsDir)

	cfg, ok, err := stats.ReadRunConfig(dir, summary.Record.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "onemax", cfg.Problem)
	assert.Equal(t, int64(3), cfg.Seed)

	history, ok, err := stats.ReadFitnessHistory(dir, summary.Record.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, summary.Record.Generations+1)

	index, err := stats.ListRunIndex(dir)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, summary.Record.ID, index[0].RunID)
}

func TestRunnerListsNewestFirstAndDeletes(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newTestRunner(t, Config{Now: c.now})

	for _, id := range []string{"a", "b", "c"} {
		_, err := r.Run(ctx, RunRequest{RunID: id, Problem: "onemax", MaxGenerations: 2})
		require.NoError(t, err)
	}

	runs, err := r.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	require.NoError(t, r.DeleteRun(ctx, "b"))
	_, err = r.GetRun(ctx, "b")
	require.ErrorIs(t, err, ErrRunNotFound)
	_, err = r.Diagnostics(ctx, "b")
	require.ErrorIs(t, err, ErrRunNotFound)
	require.ErrorIs(t, r.DeleteRun(ctx, "b"), ErrRunNotFound)

	runs, err = r.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunnerListsProblems(t *testing.T) {
	r := newTestRunner(t, Config{})
	names := []string{}
	for _, p := range r.Problems() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"onemax", "origin"}, names)
}

func TestRunnerPersistsNonFiniteFitness(t *testing.T) {
	stores := map[string]func(t *testing.T) storage.Store{
		"memory": func(*testing.T) storage.Store { return storage.NewMemoryStore() },
		"badger": func(t *testing.T) storage.Store {
			store := storage.NewBadgerStore(storage.BadgerConfig{InMemory: true})
			t.Cleanup(func() { _ = storage.CloseIfSupported(store) })
			return store
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg := problem.NewRegistry()
			require.NoError(t, reg.Register(infeasibleProblem()))
			m := metrics.New()
			dir := t.TempDir()
			r := newTestRunner(t, Config{Store: open(t), Problems: reg, Metrics: m, ArtifactsDir: dir})

			summary, err := r.Run(ctx, RunRequest{RunID: "inf-1", Problem: "infeasible", Seed: 5})
			require.NoError(t, err)
			assert.Equal(t, model.RunStatusCompleted, summary.Record.Status)
			assert.True(t, math.IsInf(summary.Record.BestFitness, -1))
			assert.Len(t, summary.Diagnostics, 4)

			stored, err := r.GetRun(ctx, "inf-1")
			require.NoError(t, err)
			assert.Equal(t, model.RunStatusCompleted, stored.Status)
			assert.True(t, math.IsInf(stored.BestFitness, -1))

			diagnostics, err := r.Diagnostics(ctx, "inf-1")
			require.NoError(t, err)
			require.Len(t, diagnostics, 4)
			for _, d := range diagnostics {
				assert.True(t, math.IsInf(d.BestFitness, -1))
				assert.True(t, math.IsInf(d.MinFitness, -1))
				assert.True(t, math.IsInf(d.MeanFitness, -1))
			}

			history, ok, err := stats.ReadFitnessHistory(dir, "inf-1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, history, 4)
			assert.True(t, math.IsInf(history[0], -1))

			index, err := stats.ListRunIndex(dir)
			require.NoError(t, err)
			require.Len(t, index, 1)
			assert.True(t, math.IsInf(float64(index[0].FinalBestFitness), -1))

			assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("infeasible", "completed")))
		})
	}
}

func TestRunnerCountsUnencodableBestAsFailed(t *testing.T) {
	ctx := context.Background()
	reg := problem.NewRegistry()
	require.NoError(t, reg.Register(opaqueProblem()))
	m := metrics.New()
	r := newTestRunner(t, Config{Problems: reg, Metrics: m})

	summary, err := r.Run(ctx, RunRequest{RunID: "opaque-1", Problem: "opaque", Seed: 1})
	require.ErrorIs(t, err, errOpaque)
	assert.Equal(t, model.RunStatusFailed, summary.Record.Status)
	assert.Len(t, summary.Diagnostics, 3)

	stored, err := r.GetRun(ctx, "opaque-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "encode best individual")
	assert.Empty(t, stored.Best)

	diagnostics, err := r.Diagnostics(ctx, "opaque-1")
	require.NoError(t, err)
	assert.Len(t, diagnostics, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("opaque", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("opaque", "completed")))
}
