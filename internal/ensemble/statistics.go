package ensemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// StatisticsResult holds per-timestep cross-model statistics for one
// resolved field. Every per-timestep slice has the same length as Times.
type StatisticsResult struct {
	Variable  Variable `json:"variable"`
	Field     Field    `json:"field"`
	IsDaily   bool     `json:"is_daily"`
	NumModels int      `json:"num_models"`
	Models    []string `json:"models"`
	Times     []string `json:"times"`

	EnsembleMean   []float64 `json:"ensemble_mean"`
	EnsembleMedian []float64 `json:"ensemble_median"`
	EnsembleStd    []float64 `json:"ensemble_std"`
	EnsembleMin    []float64 `json:"ensemble_min"`
	EnsembleMax    []float64 `json:"ensemble_max"`
	Percentile25   []float64 `json:"percentile_25"`
	Percentile75   []float64 `json:"percentile_75"`
	Spread         []float64 `json:"spread"`
}

// Statistics computes per-timestep mean, median, sample standard deviation,
// min, max, quartiles, and spread across all models carrying the resolved
// field. useMax selects between temperature_max and temperature_min for
// daily data and is ignored otherwise. All reducers work at full precision;
// outputs are rounded to two decimals.
func Statistics(ds Dataset, v Variable, useMax bool) (*StatisticsResult, error) {
	n, err := normalize(ds, v, useMax)
	if err != nil {
		return nil, err
	}

	r := &StatisticsResult{
		Variable:  v,
		Field:     n.field,
		IsDaily:   n.shape == ShapeDaily,
		NumModels: len(n.names),
		Models:    n.names,
		Times:     n.axis,

		EnsembleMean:   make([]float64, 0, n.steps),
		EnsembleMedian: make([]float64, 0, n.steps),
		EnsembleStd:    make([]float64, 0, n.steps),
		EnsembleMin:    make([]float64, 0, n.steps),
		EnsembleMax:    make([]float64, 0, n.steps),
		Percentile25:   make([]float64, 0, n.steps),
		Percentile75:   make([]float64, 0, n.steps),
		Spread:         make([]float64, 0, n.steps),
	}

	for i := 0; i < n.steps; i++ {
		vals := n.at(i)

		mean, _ := stats.Mean(vals)
		median, _ := stats.Median(vals)
		lo, _ := stats.Min(vals)
		hi, _ := stats.Max(vals)

		// A single-model ensemble has no sample deviation.
		sd := 0.0
		if len(vals) > 1 {
			sd, _ = stats.StandardDeviationSample(vals)
		}

		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)

		r.EnsembleMean = append(r.EnsembleMean, round2(mean))
		r.EnsembleMedian = append(r.EnsembleMedian, round2(median))
		r.EnsembleStd = append(r.EnsembleStd, round2(sd))
		r.EnsembleMin = append(r.EnsembleMin, round2(lo))
		r.EnsembleMax = append(r.EnsembleMax, round2(hi))
		r.Percentile25 = append(r.Percentile25, round2(quantileExclusive(sorted, 0.25)))
		r.Percentile75 = append(r.Percentile75, round2(quantileExclusive(sorted, 0.75)))
		r.Spread = append(r.Spread, round2(hi-lo))
	}

	return r, nil
}

// TemperatureTier is the per-extreme slice of a temperature range result.
type TemperatureTier struct {
	EnsembleMean []float64 `json:"ensemble_mean"`
	Spread       []float64 `json:"spread"`
	EnsembleStd  []float64 `json:"ensemble_std"`
	Times        []string  `json:"times"`
}

// TemperatureRangeResult pairs statistics for daily highs and lows.
type TemperatureRangeResult struct {
	TemperatureMax TemperatureTier `json:"temperature_max"`
	TemperatureMin TemperatureTier `json:"temperature_min"`
	Models         []string        `json:"models"`
	NumModels      int             `json:"num_models"`
}

// TemperatureRange computes statistics on both temperature extremes of a
// daily dataset, giving the full picture of temperature uncertainty.
func TemperatureRange(ds Dataset) (*TemperatureRangeResult, error) {
	maxStats, err := Statistics(ds, Temperature, true)
	if err != nil {
		return nil, fmt.Errorf("temperature range statistics: %w", err)
	}
	minStats, err := Statistics(ds, Temperature, false)
	if err != nil {
		return nil, fmt.Errorf("temperature range statistics: %w", err)
	}

	return &TemperatureRangeResult{
		TemperatureMax: TemperatureTier{
			EnsembleMean: maxStats.EnsembleMean,
			Spread:       maxStats.Spread,
			EnsembleStd:  maxStats.EnsembleStd,
			Times:        maxStats.Times,
		},
		TemperatureMin: TemperatureTier{
			EnsembleMean: minStats.EnsembleMean,
			Spread:       minStats.Spread,
			EnsembleStd:  minStats.EnsembleStd,
			Times:        minStats.Times,
		},
		Models:    maxStats.Models,
		NumModels: maxStats.NumModels,
	}, nil
}

// quantileExclusive computes the p-quantile of sorted data with the
// exclusive method: the quantile position is p*(n+1) in 1-based order
// statistics, linearly interpolated and clamped to the observed range.
// montanaflynn/stats only offers nearest-rank percentiles, so this is local.
func quantileExclusive(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := p * float64(n+1)
	if h <= 1 {
		return sorted[0]
	}
	if h >= float64(n) {
		return sorted[n-1]
	}
	j := int(math.Floor(h))
	frac := h - float64(j)
	return sorted[j-1] + (sorted[j]-sorted[j-1])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
