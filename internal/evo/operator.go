package evo

import (
	"fmt"
	"log/slog"

	"evoloop/internal/random"
)

// Generator produces a random individual.
type Generator[E any] func() (E, error)

// Evaluator scores an individual. It must be safe for concurrent use when
// Config.Workers > 1.
type Evaluator[E any] func(E) (float64, error)

// Crossover combines two parents into one offspring.
type Crossover[E any] func(a, b E) (E, error)

// Mutator returns a perturbed copy of an individual.
type Mutator[E any] func(E) (E, error)

// Terminator decides convergence from the ranked population.
type Terminator[E any] func(Population[E]) bool

// Observer receives the ranked population after the initial ranking and
// after every generation step.
type Observer[E any] func(Population[E])

type Operators[E any] struct {
	Generator  Generator[E]
	Evaluator  Evaluator[E]
	Crossover  Crossover[E]
	Mutator    Mutator[E]
	Terminator Terminator[E]
}

type Config[E any] struct {
	Settings  Settings
	Operators Operators[E]
	// Source draws the parent and mutation indices.
	Source random.Source
	// Workers bounds concurrent evaluation of the initial population.
	Workers  int
	Observer Observer[E]
	Logger   *slog.Logger
}

// Operator names used in OperatorError.
const (
	OpGenerate  = "generate"
	OpEvaluate  = "evaluate"
	OpCrossover = "crossover"
	OpMutate    = "mutate"
)

// OperatorError wraps a failure raised by a caller-supplied operator. The
// run that produced it is aborted and its population is not resumable.
type OperatorError struct {
	Op         string
	Generation int
	Slot       int
	Err        error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("%s failed at generation %d slot %d: %v", e.Op, e.Generation, e.Slot, e.Err)
}

func (e *OperatorError) Unwrap() error {
	return e.Err
}
