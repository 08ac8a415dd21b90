package plot

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"ensemblecast/internal/ensemble"
)

func hourlyDataset() ensemble.Dataset {
	return ensemble.Dataset{
		"gfs": {
			Model:         "gfs",
			Times:         []string{"2026-01-01T00:00", "2026-01-01T01:00", "2026-01-01T02:00"},
			Temperature:   []float64{50, 52, 54},
			Precipitation: []float64{0, 0.1, 0.2},
			WindSpeed:     []float64{5, 8, 6},
		},
		"ecmwf": {
			Model:         "ecmwf",
			Times:         []string{"2026-01-01T00:00", "2026-01-01T01:00", "2026-01-01T02:00"},
			Temperature:   []float64{54, 50, 52},
			Precipitation: []float64{0, 0, 0.3},
			WindSpeed:     []float64{7, 6, 9},
		},
	}
}

func TestRenderHourly(t *testing.T) {
	data, err := Render(hourlyDataset(), "Ensemble Forecast")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != imageWidth {
		t.Errorf("width = %d, want %d", b.Dx(), imageWidth)
	}
	// Three hourly panels.
	wantH := headerH + 3*panelHeight
	if b.Dy() != wantH {
		t.Errorf("height = %d, want %d", b.Dy(), wantH)
	}
}

func TestRenderDaily(t *testing.T) {
	ds := ensemble.Dataset{
		"gfs": {
			Model:          "gfs",
			Dates:          []string{"2026-01-01", "2026-01-02"},
			TemperatureMax: []float64{60, 62},
			TemperatureMin: []float64{40, 42},
			Precipitation:  []float64{0, 0.5},
			WindSpeedMax:   []float64{12, 18},
		},
		"icon": {
			Model:          "icon",
			Dates:          []string{"2026-01-01", "2026-01-02"},
			TemperatureMax: []float64{61, 64},
			TemperatureMin: []float64{39, 44},
			Precipitation:  []float64{0.1, 0.4},
			WindSpeedMax:   []float64{10, 20},
		},
	}

	data, err := Render(ds, "Daily Ensemble")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	wantH := headerH + 4*panelHeight
	if img.Bounds().Dy() != wantH {
		t.Errorf("height = %d, want %d", img.Bounds().Dy(), wantH)
	}
}

func TestRenderSkipsMissingVariables(t *testing.T) {
	// Temperature only: precipitation and wind panels are skipped.
	ds := ensemble.Dataset{
		"gfs": {
			Model:       "gfs",
			Times:       []string{"t0", "t1"},
			Temperature: []float64{50, 52},
		},
	}
	data, err := Render(ds, "Partial")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	wantH := headerH + 1*panelHeight
	if img.Bounds().Dy() != wantH {
		t.Errorf("height = %d, want %d", img.Bounds().Dy(), wantH)
	}
}

func TestRenderNoValidModels(t *testing.T) {
	ds := ensemble.Dataset{
		"gfs": {Error: "API request failed"},
	}
	if _, err := Render(ds, "Empty"); !errors.Is(err, ensemble.ErrNoValidModels) {
		t.Errorf("err = %v, want ErrNoValidModels", err)
	}
}
