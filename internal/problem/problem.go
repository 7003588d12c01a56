// Package problem binds concrete entity types to the generic evolutionary
// loop. Each problem supplies its operators and convergence criterion and is
// resolved by name from a Registry.
package problem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"evoloop/internal/evo"
	"evoloop/internal/random"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
)

// Snapshot is the ranked fitness of one generation.
type Snapshot struct {
	Generation int
	Fitness    []float64
}

type SolveRequest struct {
	Settings evo.Settings
	Seed     int64
	Workers  int
	// MaxGenerations caps the run on top of the problem's own terminator.
	// Zero selects the problem default.
	MaxGenerations int
	Observer       func(Snapshot)
	Logger         *slog.Logger
}

type Outcome struct {
	BestFitness  float64
	Best         any
	Generations  int
	FinalFitness []float64
}

type Problem interface {
	Name() string
	Description() string
	DefaultSettings() evo.Settings
	DefaultMaxGenerations() int
	Solve(ctx context.Context, req SolveRequest) (Outcome, error)
}

// Definition implements Problem for an entity type E.
type Definition[E any] struct {
	ID             string
	Summary        string
	Defaults       evo.Settings
	MaxGenerations int
	// Operators builds the operators around r. Its Terminator is the
	// problem's convergence criterion.
	Operators func(r *random.Rand) evo.Operators[E]
}

func (d Definition[E]) Name() string {
	return d.ID
}

func (d Definition[E]) Description() string {
	return d.Summary
}

func (d Definition[E]) DefaultSettings() evo.Settings {
	return d.Defaults
}

func (d Definition[E]) DefaultMaxGenerations() int {
	return d.MaxGenerations
}

// Solve derives two child streams from req.Seed: one for the engine's
// index draws and one shared by the operators. Equal seeds replay equal runs.
func (d Definition[E]) Solve(ctx context.Context, req SolveRequest) (Outcome, error) {
	if d.Operators == nil {
		return Outcome{}, fmt.Errorf("problem %s: operators are required", d.ID)
	}

	root := random.New(req.Seed)
	index := random.New(root.Int63())
	ops := d.Operators(random.New(root.Int63()))

	limit := req.MaxGenerations
	if limit <= 0 {
		limit = d.MaxGenerations
	}
	if limit > 0 {
		if ops.Terminator == nil {
			ops.Terminator = evo.MaxGenerations[E](limit)
		} else {
			ops.Terminator = evo.Any(ops.Terminator, evo.MaxGenerations[E](limit))
		}
	}

	cfg := evo.Config[E]{
		Settings:  req.Settings,
		Operators: ops,
		Source:    index,
		Workers:   req.Workers,
		Logger:    req.Logger,
	}
	if req.Observer != nil {
		cfg.Observer = func(pop evo.Population[E]) {
			req.Observer(Snapshot{Generation: pop.Generation(), Fitness: pop.Fitnesses()})
		}
	}

	engine, err := evo.NewEngine(cfg)
	if err != nil {
		return Outcome{}, err
	}
	result, err := engine.Run(ctx)
	if err != nil {
		return Outcome{}, err
	}

	final := make([]float64, len(result.Final))
	for i, m := range result.Final {
		final[i] = m.Fitness
	}
	return Outcome{
		BestFitness:  result.Best.Fitness,
		Best:         result.Best.Individual,
		Generations:  result.Generations,
		FinalFitness: final,
	}, nil
}

type Registry struct {
	mu       sync.RWMutex
	problems map[string]Problem
}

func NewRegistry() *Registry {
	return &Registry{problems: make(map[string]Problem)}
}

// Builtin returns a registry holding every problem shipped with evoloop.
func Builtin() *Registry {
	r := NewRegistry()
	for _, p := range []Problem{Origin(DefaultOriginOptions()), OneMax(DefaultOneMaxOptions())} {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(p Problem) error {
	if p == nil {
		return errors.New("problem is required")
	}
	name := NormalizeName(p.Name())
	if name == "" {
		return errors.New("problem name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.problems[name]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, name)
	}
	r.problems[name] = p
	return nil
}

// Resolve looks a problem up by its normalized name.
func (r *Registry) Resolve(name string) (Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.problems[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return p, nil
}

// NormalizeName canonicalizes problem names: lower case, with underscores
// and spaces folded into dashes.
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	return strings.Trim(normalized, "-")
}

// List returns the registered problems sorted by name.
func (r *Registry) List() []Problem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Problem, 0, len(r.problems))
	for _, p := range r.problems {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return NormalizeName(out[i].Name()) < NormalizeName(out[j].Name())
	})
	return out
}
