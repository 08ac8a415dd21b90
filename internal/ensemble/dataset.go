// Package ensemble computes cross-model statistics for numerical weather
// model forecasts: per-timestep descriptive statistics, pairwise agreement,
// and multi-variable uncertainty summaries.
package ensemble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Shape is the temporal resolution and field-naming convention of a dataset.
type Shape int

const (
	ShapeHourly Shape = iota
	ShapeDaily
)

func (s Shape) String() string {
	if s == ShapeDaily {
		return "daily"
	}
	return "hourly"
}

// Variable is the caller-facing abstract name of a forecast variable.
type Variable string

const (
	Temperature   Variable = "temperature"
	Precipitation Variable = "precipitation"
	WindSpeed     Variable = "wind_speed"
)

// Field is a concrete series name as it appears on the wire.
type Field string

const (
	FieldTemperature    Field = "temperature"
	FieldTemperatureMax Field = "temperature_max"
	FieldTemperatureMin Field = "temperature_min"
	FieldPrecipitation  Field = "precipitation"
	FieldWindSpeed      Field = "wind_speed"
	FieldWindSpeedMax   Field = "wind_speed_max"
)

// ResolveField maps an abstract variable to the concrete series name for a
// shape. Daily temperature splits into max/min selected by useMax; daily wind
// only has a max series; daily precipitation is already a daily sum.
func ResolveField(s Shape, v Variable, useMax bool) Field {
	if s == ShapeHourly {
		return Field(v)
	}
	switch v {
	case Temperature:
		if useMax {
			return FieldTemperatureMax
		}
		return FieldTemperatureMin
	case WindSpeed:
		return FieldWindSpeedMax
	default:
		return Field(v)
	}
}

// Model is one weather model's contribution to a dataset: either an error
// record or a set of parallel series sharing the times/dates axis.
type Model struct {
	Error string `json:"error,omitempty"`

	Model     string  `json:"model,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`

	// Hourly axis and series.
	Times       []string  `json:"times,omitempty"`
	Temperature []float64 `json:"temperature,omitempty"`
	WindSpeed   []float64 `json:"wind_speed,omitempty"`

	// Daily axis and series.
	Dates          []string  `json:"dates,omitempty"`
	TemperatureMax []float64 `json:"temperature_max,omitempty"`
	TemperatureMin []float64 `json:"temperature_min,omitempty"`
	WindSpeedMax   []float64 `json:"wind_speed_max,omitempty"`

	// Present in both shapes: hourly amounts or daily sums.
	Precipitation []float64 `json:"precipitation,omitempty"`
}

// Valid reports whether the model carries data rather than an error record.
func (m *Model) Valid() bool {
	return m != nil && m.Error == ""
}

// Shape classifies a single model. A model is daily when it carries a dates
// axis or a temperature_max series, with or without the other.
func (m *Model) Shape() Shape {
	if m.Dates != nil || m.TemperatureMax != nil {
		return ShapeDaily
	}
	return ShapeHourly
}

// Series returns the named series, or nil when the model does not carry it.
func (m *Model) Series(f Field) []float64 {
	switch f {
	case FieldTemperature:
		return m.Temperature
	case FieldTemperatureMax:
		return m.TemperatureMax
	case FieldTemperatureMin:
		return m.TemperatureMin
	case FieldPrecipitation:
		return m.Precipitation
	case FieldWindSpeed:
		return m.WindSpeed
	case FieldWindSpeedMax:
		return m.WindSpeedMax
	}
	return nil
}

// Axis returns the model's time index: hourly timestamps or daily dates.
func (m *Model) Axis() []string {
	if m.Times != nil {
		return m.Times
	}
	return m.Dates
}

// Keys lists the series and axis names the model actually carries, for
// field-not-found diagnostics.
func (m *Model) Keys() []string {
	var keys []string
	if m.Times != nil {
		keys = append(keys, "times")
	}
	if m.Dates != nil {
		keys = append(keys, "dates")
	}
	for _, f := range []Field{
		FieldTemperature, FieldTemperatureMax, FieldTemperatureMin,
		FieldPrecipitation, FieldWindSpeed, FieldWindSpeedMax,
	} {
		if m.Series(f) != nil {
			keys = append(keys, string(f))
		}
	}
	return keys
}

// Dataset maps a model identifier to its series or error record.
type Dataset map[string]*Model

// ValidModels returns the names of non-error models in sorted order. Sorted
// name order is the deterministic iteration order used everywhere a "first
// model" or model list is needed.
func (ds Dataset) ValidModels() []string {
	var names []string
	for name, m := range ds {
		if m.Valid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DecodeDataset parses a dataset from JSON. It accepts both the structured
// object form and the same object serialized inside a JSON string, which is
// how tool-call arguments often arrive. Model entries that are not objects
// are kept as error records rather than failing the whole dataset.
func DecodeDataset(data []byte) (Dataset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		trimmed = []byte(inner)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ds := make(Dataset, len(raw))
	for name, entry := range raw {
		var m Model
		if err := json.Unmarshal(entry, &m); err != nil {
			ds[name] = &Model{Error: fmt.Sprintf("malformed model entry: %v", err)}
			continue
		}
		ds[name] = &m
	}
	return ds, nil
}
