package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"evoloop/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Problem:        "origin",
			Settings:       model.RunSettings{Size: 10, K: 4, M: 2, N: 2, CO: 2},
			Seed:           1,
			Workers:        2,
			MaxGenerations: 3,
		},
		Diagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestFitness: -50, MeanFitness: -80, MinFitness: -100},
			{Generation: 1, BestFitness: -20, MeanFitness: -40, MinFitness: -90},
			{Generation: 2, BestFitness: -5.5, MeanFitness: -10, MinFitness: -30},
		},
		BestFitness: -5.5,
		Best:        json.RawMessage(`{"x":1,"y":2}`),
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"config.json", "generation_diagnostics.json", "fitness_history.csv", "best.json"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Problem != "origin" || cfg.Settings.K != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	series, ok, err := ReadFitnessHistory(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read history: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[2] != -5.5 {
		t.Fatalf("unexpected series: %v", series)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadFitnessHistory(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing history, ok=%t err=%v", ok, err)
	}
}

func TestRunIndexNewestFirstAndUpsert(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 1},
		{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z", FinalBestFitness: 2},
	}
	for _, e := range entries {
		if err := AppendRunIndex(baseDir, e); err != nil {
			t.Fatalf("append %s: %v", e.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 3}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 2 || index[0].RunID != "b" || index[1].FinalBestFitness != 3 {
		t.Fatalf("unexpected index: %+v", index)
	}
}
