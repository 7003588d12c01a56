package problem

import (
	"fmt"
	"math"

	"evoloop/internal/evo"
	"evoloop/internal/random"
)

// Params is a point in the plane. Fitness grows as it nears the origin.
type Params struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Params) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

type OriginOptions struct {
	Bound            float64
	MutationVariance float64
	Tolerance        float64
	MaxOutliers      float64
	Floor            float64
	MaxGenerations   int
}

func DefaultOriginOptions() OriginOptions {
	return OriginOptions{
		Bound:            100000,
		MutationVariance: 25,
		Tolerance:        0.02,
		MaxOutliers:      0.25,
		Floor:            10,
		MaxGenerations:   100000,
	}
}

// Origin searches for the point closest to (0, 0).
func Origin(opts OriginOptions) Definition[Params] {
	return Definition[Params]{
		ID:             "origin",
		Summary:        "minimise the distance of a 2-D point to the origin",
		Defaults:       evo.Settings{Size: 100, K: 50, M: 10, N: 10, CO: 40},
		MaxGenerations: opts.MaxGenerations,
		Operators: func(r *random.Rand) evo.Operators[Params] {
			return evo.Operators[Params]{
				Generator: func() (Params, error) {
					return Params{
						X: r.Uniform(-opts.Bound, opts.Bound),
						Y: r.Uniform(-opts.Bound, opts.Bound),
					}, nil
				},
				Evaluator: OriginFitness,
				Crossover: func(a, b Params) (Params, error) {
					w := r.Uniform(0, 1)
					return Params{
						X: a.X + w*(b.X-a.X),
						Y: a.Y + w*(b.Y-a.Y),
					}, nil
				},
				Mutator: func(p Params) (Params, error) {
					return Params{
						X: r.Normal(p.X, opts.MutationVariance),
						Y: r.Normal(p.Y, opts.MutationVariance),
					}, nil
				},
				Terminator: evo.Converged(ParamsCoords, opts.Tolerance, opts.MaxOutliers, opts.Floor),
			}
		},
	}
}

func OriginFitness(p Params) (float64, error) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return 0, fmt.Errorf("params %s: coordinate is NaN", p)
	}
	return -math.Hypot(p.X, p.Y), nil
}

func ParamsCoords(p Params) []float64 {
	return []float64{p.X, p.Y}
}
