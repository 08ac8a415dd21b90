package ensemble

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func dailyThreeModels() Dataset {
	return Dataset{
		"gfs": {
			Dates:          []string{"d0", "d1"},
			TemperatureMax: []float64{86, 88},
			TemperatureMin: []float64{61, 63},
			Precipitation:  []float64{0.0, 0.02},
			WindSpeedMax:   []float64{12, 14},
		},
		"ecmwf": {
			Dates:          []string{"d0", "d1"},
			TemperatureMax: []float64{84, 89},
			TemperatureMin: []float64{60, 64},
			Precipitation:  []float64{0.01, 0.03},
			WindSpeedMax:   []float64{13, 16},
		},
	}
}

func TestSummarizeUncertaintyDaily(t *testing.T) {
	sum, err := SummarizeUncertainty(dailyThreeModels())
	if err != nil {
		t.Fatalf("SummarizeUncertainty: %v", err)
	}

	if sum.NumModels != 2 {
		t.Errorf("NumModels = %d, want 2", sum.NumModels)
	}
	if want := []string{"ecmwf", "gfs"}; !reflect.DeepEqual(sum.Models, want) {
		t.Errorf("Models = %v, want %v", sum.Models, want)
	}

	for _, tier := range []string{"temperature_max", "temperature_min", "wind_speed_max", "precipitation"} {
		if _, ok := sum.Variables[tier]; !ok {
			t.Errorf("missing tier %s", tier)
		}
	}

	// Max temp spreads are 2 and 1: average 1.5, below the 3 degree band.
	tmax := sum.Variables["temperature_max"]
	if math.Abs(tmax.AverageSpread-1.5) > tolerance {
		t.Errorf("temperature_max AverageSpread = %v, want 1.5", tmax.AverageSpread)
	}
	if math.Abs(tmax.MaxSpread-2) > tolerance {
		t.Errorf("temperature_max MaxSpread = %v, want 2", tmax.MaxSpread)
	}
	if tmax.UncertaintyLevel != UncertaintyLow {
		t.Errorf("temperature_max level = %s, want low", tmax.UncertaintyLevel)
	}
}

func TestSummarizeUncertaintyHourly(t *testing.T) {
	ds := Dataset{
		"gfs": {
			Times:         []string{"t0", "t1"},
			Temperature:   []float64{70, 72},
			Precipitation: []float64{0.0, 0.1},
			WindSpeed:     []float64{5, 25},
		},
		"ecmwf": {
			Times:         []string{"t0", "t1"},
			Temperature:   []float64{75, 76},
			Precipitation: []float64{0.3, 0.5},
			WindSpeed:     []float64{11, 38},
		},
	}
	sum, err := SummarizeUncertainty(ds)
	if err != nil {
		t.Fatalf("SummarizeUncertainty: %v", err)
	}

	for _, tier := range []string{"temperature", "precipitation", "wind_speed"} {
		if _, ok := sum.Variables[tier]; !ok {
			t.Errorf("missing tier %s", tier)
		}
	}

	// Temperature spreads 5 and 4: average 4.5 is moderate.
	if got := sum.Variables["temperature"].UncertaintyLevel; got != UncertaintyModerate {
		t.Errorf("temperature level = %s, want moderate", got)
	}
	// Precipitation spreads 0.3 and 0.4: average 0.35 exceeds the hourly 0.3 band.
	if got := sum.Variables["precipitation"].UncertaintyLevel; got != UncertaintyHigh {
		t.Errorf("precipitation level = %s, want high", got)
	}
	// Wind spreads 6 and 13: average 9.5 is moderate on the hourly 5/10 bands.
	if got := sum.Variables["wind_speed"].UncertaintyLevel; got != UncertaintyModerate {
		t.Errorf("wind_speed level = %s, want moderate", got)
	}
}

func TestSummarizeUncertaintyBandSelection(t *testing.T) {
	// The same wind average spread of 4 classifies differently under the two
	// band sets: moderate on daily 3/8, low on hourly 5/10.
	ds := Dataset{
		"gfs":   {Times: []string{"t0"}, WindSpeed: []float64{10}},
		"ecmwf": {Times: []string{"t0"}, WindSpeed: []float64{14}},
	}

	sum, err := SummarizeUncertaintyWithBands(ds, DailyBands)
	if err != nil {
		t.Fatalf("daily bands: %v", err)
	}
	if got := sum.Variables["wind_speed"].UncertaintyLevel; got != UncertaintyModerate {
		t.Errorf("daily bands level = %s, want moderate", got)
	}

	sum, err = SummarizeUncertaintyWithBands(ds, HourlyBands)
	if err != nil {
		t.Fatalf("hourly bands: %v", err)
	}
	if got := sum.Variables["wind_speed"].UncertaintyLevel; got != UncertaintyLow {
		t.Errorf("hourly bands level = %s, want low", got)
	}
}

func TestSummarizeUncertaintyOmitsFailedTiers(t *testing.T) {
	ds := Dataset{
		"gfs":   {Times: []string{"t0"}, Temperature: []float64{70}},
		"ecmwf": {Times: []string{"t0"}, Temperature: []float64{74}},
	}
	sum, err := SummarizeUncertainty(ds)
	if err != nil {
		t.Fatalf("SummarizeUncertainty: %v", err)
	}
	if _, ok := sum.Variables["temperature"]; !ok {
		t.Error("temperature tier missing")
	}
	if _, ok := sum.Variables["wind_speed"]; ok {
		t.Error("wind_speed tier should be omitted when the field is absent")
	}
	if _, ok := sum.Variables["precipitation"]; ok {
		t.Error("precipitation tier should be omitted when the field is absent")
	}
}

func TestSummarizeUncertaintyNoValidModels(t *testing.T) {
	_, err := SummarizeUncertainty(Dataset{"gfs": {Error: "x"}})
	if !errors.Is(err, ErrNoValidModels) {
		t.Errorf("error = %v, want ErrNoValidModels", err)
	}
}

func TestBandClassify(t *testing.T) {
	b := Band{Low: 3, Moderate: 7}
	tests := []struct {
		spread float64
		want   string
	}{
		{0, UncertaintyLow},
		{2.99, UncertaintyLow},
		{3, UncertaintyModerate},
		{6.99, UncertaintyModerate},
		{7, UncertaintyHigh},
		{100, UncertaintyHigh},
	}
	for _, tt := range tests {
		if got := b.classify(tt.spread); got != tt.want {
			t.Errorf("classify(%v) = %s, want %s", tt.spread, got, tt.want)
		}
	}
}
