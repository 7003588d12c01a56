package problem

import (
	"strings"

	"evoloop/internal/evo"
	"evoloop/internal/random"
)

// Bits is a fixed-length bitstring. It marshals as a string of 0 and 1.
type Bits []bool

func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (b Bits) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bits) UnmarshalText(text []byte) error {
	out := make(Bits, len(text))
	for i, c := range text {
		out[i] = c == '1'
	}
	*b = out
	return nil
}

func (b Bits) Ones() int {
	n := 0
	for _, bit := range b {
		if bit {
			n++
		}
	}
	return n
}

type OneMaxOptions struct {
	Length         int
	FlipRate       float64
	MaxGenerations int
}

func DefaultOneMaxOptions() OneMaxOptions {
	return OneMaxOptions{
		Length:         64,
		FlipRate:       1.0 / 64,
		MaxGenerations: 1000,
	}
}

// OneMax maximises the number of set bits. It stops once every bit is set.
func OneMax(opts OneMaxOptions) Definition[Bits] {
	length := opts.Length
	if length <= 0 {
		length = DefaultOneMaxOptions().Length
	}
	rate := opts.FlipRate
	if rate <= 0 {
		rate = 1 / float64(length)
	}

	return Definition[Bits]{
		ID:             "onemax",
		Summary:        "maximise the number of ones in a bitstring",
		Defaults:       evo.Settings{Size: 60, K: 30, M: 10, N: 5, CO: 25},
		MaxGenerations: opts.MaxGenerations,
		Operators: func(r *random.Rand) evo.Operators[Bits] {
			return evo.Operators[Bits]{
				Generator: func() (Bits, error) {
					out := make(Bits, length)
					for i := range out {
						out[i] = r.Bool(0.5)
					}
					return out, nil
				},
				Evaluator: func(b Bits) (float64, error) {
					return float64(b.Ones()), nil
				},
				Crossover: func(a, b Bits) (Bits, error) {
					out := make(Bits, len(a))
					for i := range out {
						if i < len(b) && r.Bool(0.5) {
							out[i] = b[i]
						} else {
							out[i] = a[i]
						}
					}
					return out, nil
				},
				Mutator: func(b Bits) (Bits, error) {
					out := make(Bits, len(b))
					copy(out, b)
					flipped := false
					for i := range out {
						if r.Bool(rate) {
							out[i] = !out[i]
							flipped = true
						}
					}
					if !flipped && len(out) > 0 {
						i := r.IntRange(0, len(out)-1)
						out[i] = !out[i]
					}
					return out, nil
				},
				Terminator: evo.FitnessAtLeast[Bits](float64(length)),
			}
		},
	}
}
