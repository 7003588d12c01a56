package evoloop

import (
	"evoloop/internal/evo"
	"evoloop/internal/problem"
	"evoloop/internal/random"
)

// Engine and its collaborators, re-exported for programs that bring their
// own individual type.
type (
	Settings           = evo.Settings
	Engine[E any]      = evo.Engine[E]
	Config[E any]      = evo.Config[E]
	Operators[E any]   = evo.Operators[E]
	Population[E any]  = evo.Population[E]
	Scored[E any]      = evo.Scored[E]
	Result[E any]      = evo.Result[E]
	Generator[E any]   = evo.Generator[E]
	Evaluator[E any]   = evo.Evaluator[E]
	Crossover[E any]   = evo.Crossover[E]
	Mutator[E any]     = evo.Mutator[E]
	Terminator[E any]  = evo.Terminator[E]
	Observer[E any]    = evo.Observer[E]
	OperatorError      = evo.OperatorError
	Source             = random.Source
	Rand               = random.Rand
	Problem            = problem.Problem
	Definition[E any]  = problem.Definition[E]
	SolveRequest       = problem.SolveRequest
	Outcome            = problem.Outcome
	Snapshot           = problem.Snapshot
)

var (
	ErrInvalidSettings = evo.ErrInvalidSettings
	ErrMissingOperator = evo.ErrMissingOperator
)

func NewEngine[E any](cfg Config[E]) (*Engine[E], error) {
	return evo.NewEngine(cfg)
}

// NewRand returns a seeded random handle usable as the engine Source and
// inside operators.
func NewRand(seed int64) *Rand {
	return random.New(seed)
}

func MaxGenerations[E any](n int) Terminator[E] {
	return evo.MaxGenerations[E](n)
}

func FitnessAtLeast[E any](target float64) Terminator[E] {
	return evo.FitnessAtLeast[E](target)
}

func Any[E any](terms ...Terminator[E]) Terminator[E] {
	return evo.Any(terms...)
}

func All[E any](terms ...Terminator[E]) Terminator[E] {
	return evo.All(terms...)
}

func Converged[E any](coords func(E) []float64, tolerance, maxOutliers, floor float64) Terminator[E] {
	return evo.Converged(coords, tolerance, maxOutliers, floor)
}
