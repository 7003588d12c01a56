package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is a float64 that survives JSON when it is not finite. Infinities
// and NaN are written as the strings "+Inf", "-Inf" and "NaN".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse float %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type runRecordJSON RunRecord

func (r RunRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		runRecordJSON
		BestFitness Float `json:"best_fitness"`
	}{runRecordJSON(r), Float(r.BestFitness)})
}

func (r *RunRecord) UnmarshalJSON(data []byte) error {
	aux := struct {
		*runRecordJSON
		BestFitness Float `json:"best_fitness"`
	}{runRecordJSON: (*runRecordJSON)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.BestFitness = float64(aux.BestFitness)
	return nil
}

type generationDiagnosticsJSON GenerationDiagnostics

func (d GenerationDiagnostics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		generationDiagnosticsJSON
		BestFitness   Float `json:"best_fitness"`
		MeanFitness   Float `json:"mean_fitness"`
		MinFitness    Float `json:"min_fitness"`
		StdDevFitness Float `json:"stddev_fitness"`
	}{
		generationDiagnosticsJSON(d),
		Float(d.BestFitness),
		Float(d.MeanFitness),
		Float(d.MinFitness),
		Float(d.StdDevFitness),
	})
}

func (d *GenerationDiagnostics) UnmarshalJSON(data []byte) error {
	aux := struct {
		*generationDiagnosticsJSON
		BestFitness   Float `json:"best_fitness"`
		MeanFitness   Float `json:"mean_fitness"`
		MinFitness    Float `json:"min_fitness"`
		StdDevFitness Float `json:"stddev_fitness"`
	}{generationDiagnosticsJSON: (*generationDiagnosticsJSON)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.BestFitness = float64(aux.BestFitness)
	d.MeanFitness = float64(aux.MeanFitness)
	d.MinFitness = float64(aux.MinFitness)
	d.StdDevFitness = float64(aux.StdDevFitness)
	return nil
}
