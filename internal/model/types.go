package model

import (
	"encoding/json"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSettings mirrors the engine settings of a persisted run.
type RunSettings struct {
	Size int `json:"size"`
	K    int `json:"k"`
	M    int `json:"m"`
	N    int `json:"n"`
	CO   int `json:"co"`
}

type RunRecord struct {
	VersionedRecord
	ID             string          `json:"id"`
	Problem        string          `json:"problem"`
	Settings       RunSettings     `json:"settings"`
	Seed           int64           `json:"seed"`
	Workers        int             `json:"workers"`
	MaxGenerations int             `json:"max_generations"`
	CreatedAt      time.Time       `json:"created_at"`
	DurationMS     int64           `json:"duration_ms"`
	Status         RunStatus       `json:"status"`
	Error          string          `json:"error,omitempty"`
	Generations    int             `json:"generations"`
	BestFitness    float64         `json:"best_fitness"`
	Best           json.RawMessage `json:"best,omitempty"`
}

type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	BestFitness    float64 `json:"best_fitness"`
	MeanFitness    float64 `json:"mean_fitness"`
	MinFitness     float64 `json:"min_fitness"`
	StdDevFitness  float64 `json:"stddev_fitness"`
	DistinctScores int     `json:"distinct_scores"`
}
