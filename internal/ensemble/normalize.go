package ensemble

import "fmt"

func positionalLabel(i int) string {
	return fmt.Sprintf("timestep_%d", i)
}

// normalized is the shared view of a dataset that every calculation starts
// from: error records filtered out, shape detected, field resolved, and the
// per-model series for that field collected with a verified common length.
type normalized struct {
	shape Shape
	field Field

	// axis is the times/dates index from the first model carrying the field.
	axis []string

	// names are the models carrying the field, in sorted order; values holds
	// their series. validNames covers all non-error models, including those
	// that lack this particular field.
	names      []string
	values     map[string][]float64
	validNames []string

	steps int
}

// normalize validates and classifies a dataset for one resolved field.
// A model missing only that field is excluded from this computation without
// being treated as a dataset-level error.
func normalize(ds Dataset, v Variable, useMax bool) (*normalized, error) {
	validNames := ds.ValidModels()
	if len(validNames) == 0 {
		return nil, ErrNoValidModels
	}

	first := ds[validNames[0]]
	shape := first.Shape()
	for _, name := range validNames[1:] {
		if got := ds[name].Shape(); got != shape {
			return nil, &MixedShapeError{Model: name, Want: shape, Got: got}
		}
	}

	field := ResolveField(shape, v, useMax)

	n := &normalized{
		shape:      shape,
		field:      field,
		values:     make(map[string][]float64),
		validNames: validNames,
		steps:      -1,
	}

	for _, name := range validNames {
		series := ds[name].Series(field)
		if series == nil {
			continue
		}
		n.names = append(n.names, name)
		n.values[name] = series
		if n.axis == nil {
			n.axis = ds[name].Axis()
		}
		if n.steps < 0 {
			n.steps = len(series)
		} else if len(series) != n.steps {
			return nil, &InconsistentTimestepsError{Model: name, Got: len(series), Want: n.steps}
		}
	}

	if len(n.names) == 0 {
		return nil, &FieldNotFoundError{Field: field, AvailableKeys: first.Keys()}
	}
	return n, nil
}

// at gathers every model's value for one timestep, in model-name order.
func (n *normalized) at(i int) []float64 {
	vals := make([]float64, 0, len(n.names))
	for _, name := range n.names {
		vals = append(vals, n.values[name][i])
	}
	return vals
}

// label returns the axis entry for a timestep, falling back to a positional
// label when the axis is shorter than the series.
func (n *normalized) label(i int) string {
	if i < len(n.axis) {
		return n.axis[i]
	}
	return positionalLabel(i)
}
