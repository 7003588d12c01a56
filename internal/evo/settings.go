package evo

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSettings = errors.New("invalid settings")
	ErrMissingOperator = errors.New("missing operator")
)

// Settings sizes one run of the evolutionary loop. K slots are replaced each
// generation: CO by crossover offspring and N by freshly generated
// individuals. M survivors are mutated in place.
type Settings struct {
	Size int `json:"size" yaml:"size"`
	K    int `json:"k" yaml:"k"`
	M    int `json:"m" yaml:"m"`
	N    int `json:"n" yaml:"n"`
	CO   int `json:"co" yaml:"co"`
}

// Validate reports ErrInvalidSettings unless K < Size, M < Size and N+CO == K.
func (s Settings) Validate() error {
	if s.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidSettings, s.Size)
	}
	if s.K < 0 || s.M < 0 || s.N < 0 || s.CO < 0 {
		return fmt.Errorf("%w: counts must be >= 0 (k=%d m=%d n=%d co=%d)", ErrInvalidSettings, s.K, s.M, s.N, s.CO)
	}
	if s.K >= s.Size {
		return fmt.Errorf("%w: k=%d must be < size=%d", ErrInvalidSettings, s.K, s.Size)
	}
	if s.M >= s.Size {
		return fmt.Errorf("%w: m=%d must be < size=%d", ErrInvalidSettings, s.M, s.Size)
	}
	if s.N+s.CO != s.K {
		return fmt.Errorf("%w: n+co=%d must equal k=%d", ErrInvalidSettings, s.N+s.CO, s.K)
	}
	return nil
}

// Alive is the length of the survivor window [0, Size-K).
func (s Settings) Alive() int {
	return s.Size - s.K
}

func (s Settings) String() string {
	return fmt.Sprintf("size=%d k=%d m=%d n=%d co=%d", s.Size, s.K, s.M, s.N, s.CO)
}
