package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"evoloop/internal/evo"
	"evoloop/internal/metrics"
	"evoloop/internal/model"
	"evoloop/internal/problem"
	"evoloop/internal/stats"
	"evoloop/internal/storage"
)

var (
	ErrNotInitialized = errors.New("runner is not initialized")
	ErrRunNotFound    = errors.New("run not found")
)

type Config struct {
	Store    storage.Store
	Problems *problem.Registry
	Metrics  *metrics.Collectors
	Logger   *slog.Logger
	// ArtifactsDir, when set, receives config, diagnostics and fitness
	// history for every completed run.
	ArtifactsDir string
	Now          func() time.Time
}

type RunRequest struct {
	RunID   string
	Problem string
	// Settings left zero select the problem defaults.
	Settings       evo.Settings
	Seed           int64
	Workers        int
	MaxGenerations int
}

type RunSummary struct {
	Record       model.RunRecord
	Diagnostics  []model.GenerationDiagnostics
	ArtifactsDir string
}

// Runner resolves problems, drives them through the engine and records the
// outcome in the store, metrics and artifacts.
type Runner struct {
	store        storage.Store
	problems     *problem.Registry
	metrics      *metrics.Collectors
	logger       *slog.Logger
	artifactsDir string
	now          func() time.Time

	mu      sync.RWMutex
	started bool
}

func NewRunner(cfg Config) *Runner {
	if cfg.Problems == nil {
		cfg.Problems = problem.Builtin()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		store:        cfg.Store,
		problems:     cfg.Problems,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		artifactsDir: cfg.ArtifactsDir,
		now:          cfg.Now,
	}
}

func (r *Runner) Init(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	r.started = true
	return nil
}

func (r *Runner) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

func (r *Runner) Problems() []problem.Problem {
	return r.problems.List()
}

func (r *Runner) Problem(name string) (problem.Problem, error) {
	return r.problems.Resolve(name)
}

// Run executes one request to completion. A run that fails after the
// problem was resolved is still persisted with status failed, and the
// operator error is returned.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if !r.Started() {
		return RunSummary{}, ErrNotInitialized
	}

	p, err := r.problems.Resolve(req.Problem)
	if err != nil {
		return RunSummary{}, err
	}
	settings := req.Settings
	if settings == (evo.Settings{}) {
		settings = p.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return RunSummary{}, err
	}
	if req.Workers < 0 {
		return RunSummary{}, fmt.Errorf("workers must be >= 0, got %d", req.Workers)
	}
	if req.MaxGenerations < 0 {
		return RunSummary{}, fmt.Errorf("max generations must be >= 0, got %d", req.MaxGenerations)
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	maxGenerations := req.MaxGenerations
	if maxGenerations == 0 {
		maxGenerations = p.DefaultMaxGenerations()
	}

	logger := r.logger.With("run_id", runID, "problem", p.Name())
	logger.Info("run started", "settings", settings.String(), "seed", req.Seed, "workers", req.Workers)

	var diagnostics []model.GenerationDiagnostics
	started := r.now()
	outcome, solveErr := p.Solve(ctx, problem.SolveRequest{
		Settings:       settings,
		Seed:           req.Seed,
		Workers:        req.Workers,
		MaxGenerations: maxGenerations,
		Logger:         logger,
		Observer: func(s problem.Snapshot) {
			d := stats.Summarize(s.Generation, s.Fitness)
			diagnostics = append(diagnostics, d)
			r.metrics.ObserveGeneration(p.Name(), d.Generation, d.BestFitness, d.MeanFitness)
		},
	})
	elapsed := r.now().Sub(started)

	record := model.RunRecord{
		ID:             runID,
		Problem:        p.Name(),
		Settings:       toRunSettings(settings),
		Seed:           req.Seed,
		Workers:        req.Workers,
		MaxGenerations: maxGenerations,
		CreatedAt:      started.UTC(),
		DurationMS:     elapsed.Milliseconds(),
		Status:         model.RunStatusCompleted,
		Generations:    outcome.Generations,
		BestFitness:    outcome.BestFitness,
	}
	runErr := solveErr
	if runErr == nil {
		best, err := json.Marshal(outcome.Best)
		if err != nil {
			runErr = fmt.Errorf("encode best individual: %w", err)
		} else {
			record.Best = best
		}
	}
	if runErr != nil {
		record.Status = model.RunStatusFailed
		record.Error = runErr.Error()
		if n := len(diagnostics); n > 0 {
			record.Generations = diagnostics[n-1].Generation
			record.BestFitness = diagnostics[n-1].BestFitness
		}
	}
	r.metrics.ObserveRun(p.Name(), string(record.Status), elapsed)

	summary := RunSummary{Record: record, Diagnostics: diagnostics}
	if err := r.persist(context.WithoutCancel(ctx), record, diagnostics); err != nil {
		return summary, err
	}

	if runErr != nil {
		logger.Warn("run failed", "error", runErr, "generations", record.Generations)
		return summary, runErr
	}

	if r.artifactsDir != "" {
		dir, err := r.writeArtifacts(record, diagnostics)
		if err != nil {
			return summary, err
		}
		summary.ArtifactsDir = dir
	}

	logger.Info("run finished",
		"generations", record.Generations,
		"best_fitness", record.BestFitness,
		"duration_ms", record.DurationMS,
	)
	return summary, nil
}

// persist writes diagnostics before the run record, so a listed run always
// has its diagnostics. A record that fails to save takes its diagnostics
// with it.
func (r *Runner) persist(ctx context.Context, record model.RunRecord, diagnostics []model.GenerationDiagnostics) error {
	if err := r.store.SaveGenerationDiagnostics(ctx, record.ID, diagnostics); err != nil {
		return fmt.Errorf("save diagnostics %s: %w", record.ID, err)
	}
	if err := r.store.SaveRun(ctx, storage.Stamp(record)); err != nil {
		_ = r.store.DeleteRun(ctx, record.ID)
		return fmt.Errorf("save run %s: %w", record.ID, err)
	}
	return nil
}

func (r *Runner) writeArtifacts(record model.RunRecord, diagnostics []model.GenerationDiagnostics) (string, error) {
	dir, err := stats.WriteRunArtifacts(r.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          record.ID,
			Problem:        record.Problem,
			Settings:       record.Settings,
			Seed:           record.Seed,
			Workers:        record.Workers,
			MaxGenerations: record.MaxGenerations,
		},
		Diagnostics: diagnostics,
		BestFitness: record.BestFitness,
		Best:        record.Best,
	})
	if err != nil {
		return "", fmt.Errorf("write artifacts %s: %w", record.ID, err)
	}
	if err := stats.AppendRunIndex(r.artifactsDir, stats.RunIndexEntry{
		RunID:            record.ID,
		Problem:          record.Problem,
		PopulationSize:   record.Settings.Size,
		Generations:      record.Generations,
		Seed:             record.Seed,
		FinalBestFitness: model.Float(record.BestFitness),
		CreatedAtUTC:     record.CreatedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return "", fmt.Errorf("append run index: %w", err)
	}
	return dir, nil
}

func (r *Runner) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if !r.Started() {
		return nil, ErrNotInitialized
	}
	return r.store.ListRuns(ctx, limit)
}

func (r *Runner) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	if !r.Started() {
		return model.RunRecord{}, ErrNotInitialized
	}
	run, ok, err := r.store.GetRun(ctx, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (r *Runner) Diagnostics(ctx context.Context, id string) ([]model.GenerationDiagnostics, error) {
	if !r.Started() {
		return nil, ErrNotInitialized
	}
	diagnostics, ok, err := r.store.GetGenerationDiagnostics(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return diagnostics, nil
}

func (r *Runner) DeleteRun(ctx context.Context, id string) error {
	if !r.Started() {
		return ErrNotInitialized
	}
	if _, err := r.GetRun(ctx, id); err != nil {
		return err
	}
	return r.store.DeleteRun(ctx, id)
}

func toRunSettings(s evo.Settings) model.RunSettings {
	return model.RunSettings{Size: s.Size, K: s.K, M: s.M, N: s.N, CO: s.CO}
}
