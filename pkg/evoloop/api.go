// Package evoloop is the public entry point: a Client that runs registered
// problems with persistence, and re-exports of the generic engine.
package evoloop

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"evoloop/internal/metrics"
	"evoloop/internal/model"
	"evoloop/internal/platform"
	"evoloop/internal/problem"
	"evoloop/internal/stats"
	"evoloop/internal/storage"
)

const defaultDBPath = "evoloop.db"

var (
	ErrRunNotFound     = platform.ErrRunNotFound
	ErrProblemNotFound = problem.ErrProblemNotFound
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	Logger       *slog.Logger
	// Problems are registered next to the builtin ones.
	Problems []Problem
}

type Client struct {
	store   storage.Store
	runner  *platform.Runner
	metrics *metrics.Collectors

	artifactsDir string
}

type RunRequest struct {
	RunID   string
	Problem string
	// Settings left zero select the problem defaults.
	Settings       Settings
	Seed           int64
	Workers        int
	MaxGenerations int
}

type RunSummary struct {
	RunID        string          `json:"run_id"`
	Problem      string          `json:"problem"`
	Status       string          `json:"status"`
	Generations  int             `json:"generations"`
	BestFitness  float64         `json:"best_fitness"`
	Best         json.RawMessage `json:"best,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	ArtifactsDir string          `json:"artifacts_dir,omitempty"`
}

type runSummaryJSON RunSummary

// MarshalJSON keeps non-finite best fitness values encodable.
func (s RunSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		runSummaryJSON
		BestFitness model.Float `json:"best_fitness"`
	}{runSummaryJSON(s), model.Float(s.BestFitness)})
}

type ProblemItem struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Settings       Settings `json:"settings"`
	MaxGenerations int      `json:"max_generations"`
}

func New(ctx context.Context, opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	registry := problem.Builtin()
	for _, p := range opts.Problems {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	store, err := storage.NewStoreWithLogger(storeKind, dbPath, opts.Logger)
	if err != nil {
		return nil, err
	}
	collectors := metrics.New()
	runner := platform.NewRunner(platform.Config{
		Store:        store,
		Problems:     registry,
		Metrics:      collectors,
		Logger:       opts.Logger,
		ArtifactsDir: opts.ArtifactsDir,
	})
	if err := runner.Init(ctx); err != nil {
		return nil, errors.Join(err, storage.CloseIfSupported(store))
	}

	return &Client{
		store:        store,
		runner:       runner,
		metrics:      collectors,
		artifactsDir: opts.ArtifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run executes a registered problem. A failed run is persisted and its
// summary is returned together with the error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	summary, err := c.runner.Run(ctx, platform.RunRequest{
		RunID:          req.RunID,
		Problem:        req.Problem,
		Settings:       req.Settings,
		Seed:           req.Seed,
		Workers:        req.Workers,
		MaxGenerations: req.MaxGenerations,
	})
	out := toRunSummary(summary.Record)
	out.ArtifactsDir = summary.ArtifactsDir
	return out, err
}

// Runs lists persisted runs newest first. limit <= 0 lists all of them.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	records, err := c.runner.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, toRunSummary(rec))
	}
	return out, nil
}

func (c *Client) Show(ctx context.Context, runID string) (model.RunRecord, error) {
	return c.runner.GetRun(ctx, runID)
}

func (c *Client) Diagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, error) {
	return c.runner.Diagnostics(ctx, runID)
}

func (c *Client) Delete(ctx context.Context, runID string) error {
	return c.runner.DeleteRun(ctx, runID)
}

func (c *Client) Problems() []ProblemItem {
	problems := c.runner.Problems()
	out := make([]ProblemItem, 0, len(problems))
	for _, p := range problems {
		out = append(out, toProblemItem(p))
	}
	return out
}

// Problem resolves one registered problem by name.
func (c *Client) Problem(name string) (ProblemItem, error) {
	p, err := c.runner.Problem(name)
	if err != nil {
		return ProblemItem{}, err
	}
	return toProblemItem(p), nil
}

func toProblemItem(p Problem) ProblemItem {
	return ProblemItem{
		Name:           p.Name(),
		Description:    p.Description(),
		Settings:       p.DefaultSettings(),
		MaxGenerations: p.DefaultMaxGenerations(),
	}
}

// Export copies the artifacts of a run into outDir/<run id>. It needs the
// client to have been created with an ArtifactsDir.
func (c *Client) Export(runID, outDir string) (string, error) {
	if c.artifactsDir == "" {
		return "", errors.New("artifacts dir is not configured")
	}
	if outDir == "" {
		return "", errors.New("output dir is required")
	}
	return stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
}

// MetricsHandler serves the client's Prometheus collectors.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

func toRunSummary(rec model.RunRecord) RunSummary {
	return RunSummary{
		RunID:       rec.ID,
		Problem:     rec.Problem,
		Status:      string(rec.Status),
		Generations: rec.Generations,
		BestFitness: rec.BestFitness,
		Best:        rec.Best,
		DurationMS:  rec.DurationMS,
	}
}
