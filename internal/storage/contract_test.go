package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoloop/internal/model"
)

func sampleRun(id string, createdAt time.Time, best float64) model.RunRecord {
	return Stamp(model.RunRecord{
		ID:             id,
		Problem:        "origin",
		Settings:       model.RunSettings{Size: 10, K: 4, M: 2, N: 2, CO: 2},
		Seed:           7,
		Workers:        1,
		MaxGenerations: 50,
		CreatedAt:      createdAt,
		DurationMS:     12,
		Status:         model.RunStatusCompleted,
		Generations:    9,
		BestFitness:    best,
		Best:           json.RawMessage(`{"x":0.5,"y":-0.25}`),
	})
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := sampleRun("run-a", base, -3)
	newer := sampleRun("run-b", base.Add(time.Minute), -1)
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	loaded, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older.Problem, loaded.Problem)
	assert.Equal(t, older.Settings, loaded.Settings)
	assert.Equal(t, older.BestFitness, loaded.BestFitness)
	assert.True(t, older.CreatedAt.Equal(loaded.CreatedAt))
	assert.JSONEq(t, string(older.Best), string(loaded.Best))

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-b", limited[0].ID)

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: -10, MeanFitness: -50, MinFitness: -90, DistinctScores: 10},
		{Generation: 1, BestFitness: -3, MeanFitness: -20, MinFitness: -70, DistinctScores: 9},
	}
	require.NoError(t, store.SaveGenerationDiagnostics(ctx, "run-a", diagnostics))
	got, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, diagnostics, got)

	_, ok, err = store.GetGenerationDiagnostics(ctx, "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	updated := older
	updated.BestFitness = -0.5
	require.NoError(t, store.SaveRun(ctx, updated))
	loaded, ok, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -0.5, loaded.BestFitness)

	require.NoError(t, store.DeleteRun(ctx, "run-a"))
	_, ok, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetGenerationDiagnostics(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, store.SaveRun(ctx, model.RunRecord{}))
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBadgerStoreContract(t *testing.T) {
	store := NewBadgerStore(BadgerConfig{InMemory: true})
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := NewBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", time.Now().UTC(), -2)))
	require.NoError(t, store.Close())

	reopened := NewBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() { _ = reopened.Close() })

	run, ok, err := reopened.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -2.0, run.BestFitness)
}

func TestStoresRequireInit(t *testing.T) {
	ctx := context.Background()
	for _, store := range []Store{NewMemoryStore(), NewBadgerStore(BadgerConfig{InMemory: true})} {
		_, _, err := store.GetRun(ctx, "x")
		assert.ErrorIs(t, err, errNotInitialized)
	}
}
