package ensemble

import (
	"reflect"
	"testing"
)

func TestDecodeDataset(t *testing.T) {
	object := `{"gfs": {"times": ["t0"], "temperature": [50]}, "gem": {"error": "API request failed"}}`

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "structured object", input: object},
		{name: "object serialized inside a JSON string", input: `"{\"gfs\": {\"times\": [\"t0\"], \"temperature\": [50]}, \"gem\": {\"error\": \"API request failed\"}}"`},
		{name: "not JSON", input: `{not json`, wantErr: true},
		{name: "string containing garbage", input: `"{broken"`, wantErr: true},
		{name: "top level is an array", input: `[1, 2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := DecodeDataset([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataset: %v", err)
			}
			if got := ds.ValidModels(); !reflect.DeepEqual(got, []string{"gfs"}) {
				t.Errorf("ValidModels = %v, want [gfs]", got)
			}
			if ds["gem"].Valid() {
				t.Error("error record should not be valid")
			}
		})
	}
}

func TestDecodeDatasetMalformedEntry(t *testing.T) {
	ds, err := DecodeDataset([]byte(`{"gfs": {"times": ["t0"], "temperature": [50]}, "bogus": 42}`))
	if err != nil {
		t.Fatalf("DecodeDataset: %v", err)
	}
	if ds["bogus"].Valid() {
		t.Error("non-object entry should become an error record")
	}
	if got := ds.ValidModels(); !reflect.DeepEqual(got, []string{"gfs"}) {
		t.Errorf("ValidModels = %v, want [gfs]", got)
	}
}

func TestModelShape(t *testing.T) {
	tests := []struct {
		name  string
		model *Model
		want  Shape
	}{
		{"times only", &Model{Times: []string{"t0"}}, ShapeHourly},
		{"dates only", &Model{Dates: []string{"d0"}}, ShapeDaily},
		{"temperature_max without dates", &Model{TemperatureMax: []float64{20}}, ShapeDaily},
		{"empty model", &Model{}, ShapeHourly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.Shape(); got != tt.want {
				t.Errorf("Shape() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveField(t *testing.T) {
	tests := []struct {
		shape  Shape
		v      Variable
		useMax bool
		want   Field
	}{
		{ShapeHourly, Temperature, true, FieldTemperature},
		{ShapeHourly, Precipitation, true, FieldPrecipitation},
		{ShapeHourly, WindSpeed, true, FieldWindSpeed},
		{ShapeDaily, Temperature, true, FieldTemperatureMax},
		{ShapeDaily, Temperature, false, FieldTemperatureMin},
		{ShapeDaily, WindSpeed, false, FieldWindSpeedMax},
		{ShapeDaily, Precipitation, true, FieldPrecipitation},
	}

	for _, tt := range tests {
		if got := ResolveField(tt.shape, tt.v, tt.useMax); got != tt.want {
			t.Errorf("ResolveField(%v, %s, %v) = %s, want %s", tt.shape, tt.v, tt.useMax, got, tt.want)
		}
	}
}

func TestModelKeys(t *testing.T) {
	m := &Model{
		Dates:          []string{"2026-08-30"},
		TemperatureMax: []float64{30},
		TemperatureMin: []float64{18},
		Precipitation:  []float64{0},
		WindSpeedMax:   []float64{12},
	}
	want := []string{"dates", "temperature_max", "temperature_min", "precipitation", "wind_speed_max"}
	if got := m.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}
