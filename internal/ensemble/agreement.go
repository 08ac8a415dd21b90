package ensemble

import (
	"github.com/montanaflynn/stats"
)

// DefaultAgreementThreshold is the spread (in the variable's native units)
// at which the agreement score has decayed to 0.5.
const DefaultAgreementThreshold = 5.0

// The two original reporting variants truncated the period lists at
// different lengths; both limits stay available and the default follows the
// dataset shape.
const (
	DailyPeriodLimit  = 5
	HourlyPeriodLimit = 10
)

const (
	highAgreementScore = 0.8
	lowAgreementScore  = 0.5
)

// AgreementOptions parameterize the agreement calculation. The zero value of
// Threshold and PeriodLimit select defaults; UseMax picks the daily
// temperature extreme, as in Statistics.
type AgreementOptions struct {
	Threshold   float64
	UseMax      bool
	PeriodLimit int
}

// DefaultAgreementOptions mirrors the conventional call: max extreme, 5.0
// threshold, shape-selected period limit.
func DefaultAgreementOptions() AgreementOptions {
	return AgreementOptions{Threshold: DefaultAgreementThreshold, UseMax: true}
}

// AgreementPeriod describes one timestep classified as high or low agreement.
type AgreementPeriod struct {
	Time           string  `json:"time"`
	Spread         float64 `json:"spread"`
	AgreementScore float64 `json:"agreement_score"`
}

// AgreementResult holds per-timestep agreement scores in [0,1] plus the
// classified periods of interest. Aggregates cover the full score sequence,
// not just the truncated period lists.
type AgreementResult struct {
	Variable  Variable `json:"variable"`
	Field     Field    `json:"field"`
	NumModels int      `json:"num_models"`
	Models    []string `json:"models"`
	Threshold float64  `json:"threshold"`

	AgreementScores []float64 `json:"agreement_scores"`
	MeanAgreement   float64   `json:"mean_agreement"`
	MinAgreement    float64   `json:"min_agreement"`
	MaxAgreement    float64   `json:"max_agreement"`

	HighAgreementCount   int               `json:"high_agreement_count"`
	LowAgreementCount    int               `json:"low_agreement_count"`
	HighAgreementPeriods []AgreementPeriod `json:"high_agreement_periods"`
	LowAgreementPeriods  []AgreementPeriod `json:"low_agreement_periods"`
}

// Agreement scores how much models agree per timestep. The score decays
// linearly from 1 at zero spread to 0 at twice the threshold, floored at
// zero. Scores at or above 0.8 mark high-agreement periods, at or below 0.5
// low-agreement periods; the band in between is intentionally unclassified.
// Requires at least two models carrying the resolved field.
func Agreement(ds Dataset, v Variable, opts AgreementOptions) (*AgreementResult, error) {
	n, err := normalize(ds, v, opts.UseMax)
	if err != nil {
		return nil, err
	}
	if len(n.names) < 2 {
		return nil, ErrInsufficientModels
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultAgreementThreshold
	}
	limit := opts.PeriodLimit
	if limit <= 0 {
		limit = HourlyPeriodLimit
		if n.shape == ShapeDaily {
			limit = DailyPeriodLimit
		}
	}

	r := &AgreementResult{
		Variable:        v,
		Field:           n.field,
		NumModels:       len(n.names),
		Models:          n.names,
		Threshold:       threshold,
		AgreementScores: make([]float64, 0, n.steps),
	}

	var high, low []AgreementPeriod
	for i := 0; i < n.steps; i++ {
		vals := n.at(i)
		lo, _ := stats.Min(vals)
		hi, _ := stats.Max(vals)
		spread := hi - lo

		score := 1.0 - spread/(threshold*2)
		if score < 0 {
			score = 0
		}
		score = round3(score)
		r.AgreementScores = append(r.AgreementScores, score)

		period := AgreementPeriod{Time: n.label(i), Spread: round2(spread), AgreementScore: score}
		switch {
		case score >= highAgreementScore:
			high = append(high, period)
		case score <= lowAgreementScore:
			low = append(low, period)
		}
	}

	mean, _ := stats.Mean(r.AgreementScores)
	lo, _ := stats.Min(r.AgreementScores)
	hi, _ := stats.Max(r.AgreementScores)
	r.MeanAgreement = round3(mean)
	r.MinAgreement = round3(lo)
	r.MaxAgreement = round3(hi)

	r.HighAgreementCount = len(high)
	r.LowAgreementCount = len(low)
	r.HighAgreementPeriods = truncatePeriods(high, limit)
	r.LowAgreementPeriods = truncatePeriods(low, limit)
	return r, nil
}

func truncatePeriods(periods []AgreementPeriod, limit int) []AgreementPeriod {
	if len(periods) > limit {
		return periods[:limit]
	}
	return periods
}
