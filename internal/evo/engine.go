package evo

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"evoloop/internal/random"
)

// Result is the outcome of one Run.
type Result[E any] struct {
	Best        Scored[E]
	Generations int
	Final       []Scored[E]
}

// Engine runs the evolutionary loop. Settings and operators are fixed at
// construction; each Run starts from a fresh population, so an Engine holds
// no state between runs.
type Engine[E any] struct {
	settings Settings
	ops      Operators[E]
	source   random.Source
	workers  int
	observer Observer[E]
	log      *slog.Logger
}

func NewEngine[E any](cfg Config[E]) (*Engine[E], error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.Operators.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingOperator)
	case cfg.Operators.Evaluator == nil:
		return nil, fmt.Errorf("%w: evaluator", ErrMissingOperator)
	case cfg.Operators.Crossover == nil:
		return nil, fmt.Errorf("%w: crossover", ErrMissingOperator)
	case cfg.Operators.Mutator == nil:
		return nil, fmt.Errorf("%w: mutator", ErrMissingOperator)
	case cfg.Operators.Terminator == nil:
		return nil, fmt.Errorf("%w: terminator", ErrMissingOperator)
	case cfg.Source == nil:
		return nil, fmt.Errorf("%w: random source", ErrMissingOperator)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine[E]{
		settings: cfg.Settings,
		ops:      cfg.Operators,
		source:   cfg.Source,
		workers:  workers,
		observer: cfg.Observer,
		log:      logger,
	}, nil
}

// Run evolves a population until the terminator reports convergence and
// returns the best individual of the final ranking. The first generation
// step always runs; the terminator is consulted after each re-rank.
// Operator failures abort the run with an *OperatorError. The context is
// checked between generations.
func (e *Engine[E]) Run(ctx context.Context) (Result[E], error) {
	members, err := e.initialize(ctx)
	if err != nil {
		return Result[E]{}, err
	}
	rank(members)
	pop := Population[E]{members: members}
	e.observe(pop)

	for {
		if err := ctx.Err(); err != nil {
			return Result[E]{}, err
		}

		plan := NewPlan(e.settings, e.source)
		if err := e.apply(members, plan, pop.generation+1); err != nil {
			return Result[E]{}, err
		}
		rank(members)
		pop.generation++
		e.observe(pop)

		e.log.Debug("generation complete",
			slog.Int("generation", pop.generation),
			slog.Float64("best_fitness", members[0].Fitness),
			slog.Float64("worst_fitness", members[len(members)-1].Fitness),
		)

		if e.ops.Terminator(pop) {
			break
		}
	}

	return Result[E]{
		Best:        members[0],
		Generations: pop.generation,
		Final:       pop.Members(),
	}, nil
}

func (e *Engine[E]) initialize(ctx context.Context) ([]Scored[E], error) {
	size := e.settings.Size
	individuals := make([]E, size)
	for i := range individuals {
		individual, err := e.ops.Generator()
		if err != nil {
			return nil, &OperatorError{Op: OpGenerate, Generation: 0, Slot: i, Err: err}
		}
		individuals[i] = individual
	}

	fitness := make([]float64, size)
	if e.workers == 1 {
		for i, individual := range individuals {
			f, err := e.ops.Evaluator(individual)
			if err != nil {
				return nil, &OperatorError{Op: OpEvaluate, Generation: 0, Slot: i, Err: err}
			}
			fitness[i] = f
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i, individual := range individuals {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f, err := e.ops.Evaluator(individual)
				if err != nil {
					return &OperatorError{Op: OpEvaluate, Generation: 0, Slot: i, Err: err}
				}
				fitness[i] = f
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	members := make([]Scored[E], size)
	for i := range members {
		members[i] = Scored[E]{Individual: individuals[i], Fitness: fitness[i]}
	}
	return members, nil
}

// apply executes plan in order against members. Mutations read and write
// survivors; crossovers read survivors after all mutations and write
// replacement slots; fresh injections only write.
func (e *Engine[E]) apply(members []Scored[E], plan Plan, generation int) error {
	for _, item := range plan {
		var (
			next E
			err  error
			op   string
		)
		switch item.Action {
		case ActionMutate:
			op = OpMutate
			next, err = e.ops.Mutator(members[item.Parents[0]].Individual)
		case ActionCrossover:
			op = OpCrossover
			next, err = e.ops.Crossover(members[item.Parents[0]].Individual, members[item.Parents[1]].Individual)
		case ActionFresh:
			op = OpGenerate
			next, err = e.ops.Generator()
		default:
			return fmt.Errorf("unknown plan action %d at slot %d", item.Action, item.Index)
		}
		if err != nil {
			return &OperatorError{Op: op, Generation: generation, Slot: item.Index, Err: err}
		}

		fitness, err := e.ops.Evaluator(next)
		if err != nil {
			return &OperatorError{Op: OpEvaluate, Generation: generation, Slot: item.Index, Err: err}
		}
		members[item.Index] = Scored[E]{Individual: next, Fitness: fitness}
	}
	return nil
}

func (e *Engine[E]) observe(pop Population[E]) {
	if e.observer != nil {
		e.observer(pop)
	}
}
