package gmm

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	goutils "go.viam.com/utils"
)

type componentJSON struct {
	Mean       [3]float64 `json:"mean"`
	Covariance [9]float64 `json:"covariance"`
	Weight     float64    `json:"weight"`
}

type modelJSON struct {
	Components []componentJSON `json:"components"`
}

// MarshalJSON encodes the model as {"components":[{"mean":[3],"covariance":[9],"weight":w}]}
// with the covariance in row-major order.
func (m *Model) MarshalJSON() ([]byte, error) {
	out := modelJSON{Components: make([]componentJSON, 0, m.Len())}
	for _, c := range m.components {
		cj := componentJSON{
			Mean:   [3]float64{c.mean.X, c.mean.Y, c.mean.Z},
			Weight: c.weight,
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cj.Covariance[i*3+j] = c.cov.At(i, j)
			}
		}
		out.Components = append(out.Components, cj)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a model. Covariances that are not symmetric are rejected.
func (m *Model) UnmarshalJSON(data []byte) error {
	var in modelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	components := make([]Component, 0, len(in.Components))
	for i, cj := range in.Components {
		for r := 0; r < 3; r++ {
			for c := r + 1; c < 3; c++ {
				if cj.Covariance[r*3+c] != cj.Covariance[c*3+r] {
					return errors.Errorf("component %d: covariance is not symmetric", i)
				}
			}
		}
		data := cj.Covariance
		comp, err := NewComponent(
			r3.Vector{X: cj.Mean[0], Y: cj.Mean[1], Z: cj.Mean[2]},
			mat.NewSymDense(3, data[:]),
			cj.Weight,
		)
		if err != nil {
			return errors.Wrapf(err, "component %d", i)
		}
		components = append(components, comp)
	}
	model, err := NewModel(components)
	if err != nil {
		return err
	}
	*m = *model
	return nil
}

// ReadModel decodes a model from r.
func ReadModel(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadModelFile reads a model from a JSON file.
func ReadModelFile(path string) (*Model, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	m, err := ReadModel(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model file %q", path)
	}
	return m, nil
}

// WriteModelFile writes a model as JSON to path.
func WriteModelFile(path string, m *Model) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
