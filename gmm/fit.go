package gmm

import (
	"github.com/golang/geo/r3"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FitConfig controls how a mixture is fit to a point cloud.
type FitConfig struct {
	// Components is the requested number of clusters. It is capped by the number of points.
	Components int `json:"components"`
	// MinVariance is added to every covariance diagonal so that flat or single point clusters
	// stay invertible.
	MinVariance float64 `json:"min_variance"`
}

// DefaultFitConfig returns the fit settings used by the CLI.
func DefaultFitConfig() FitConfig {
	return FitConfig{Components: 8, MinVariance: 1e-4}
}

// Validate ensures all parts of the config are valid.
func (cfg FitConfig) Validate() error {
	if cfg.Components < 1 {
		return errors.Errorf("components must be positive, got %d", cfg.Components)
	}
	if cfg.MinVariance <= 0 {
		return errors.Errorf("min_variance must be positive, got %v", cfg.MinVariance)
	}
	return nil
}

type pointObservation r3.Vector

func (p pointObservation) Coordinates() clusters.Coordinates {
	return clusters.Coordinates{p.X, p.Y, p.Z}
}

func (p pointObservation) Distance(point clusters.Coordinates) float64 {
	return r3.Vector(p).Distance(r3.Vector{X: point[0], Y: point[1], Z: point[2]})
}

// FitModel clusters points with k-means and summarizes each cluster by its mean, its sample
// covariance plus MinVariance*I, and its share of the points as weight.
func FitModel(points []r3.Vector, cfg FitConfig) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, errors.New("cannot fit a mixture to an empty point set")
	}
	k := cfg.Components
	if k > len(points) {
		k = len(points)
	}

	all := make(clusters.Observations, 0, len(points))
	for _, p := range points {
		all = append(all, pointObservation(p))
	}
	km := kmeans.New()
	groups, err := km.Partition(all, k)
	if err != nil {
		return nil, errors.Wrap(err, "k-means partition failed")
	}

	components := make([]Component, 0, len(groups))
	for _, g := range groups {
		if len(g.Observations) == 0 {
			continue
		}
		comp, err := fitCluster(g.Observations, float64(len(points)), cfg.MinVariance)
		if err != nil {
			return nil, err
		}
		components = append(components, comp)
	}
	return NewModel(components)
}

func fitCluster(obs clusters.Observations, total, minVariance float64) (Component, error) {
	data := mat.NewDense(len(obs), 3, nil)
	var mean r3.Vector
	for i, o := range obs {
		c := o.Coordinates()
		data.SetRow(i, c)
		mean = mean.Add(r3.Vector{X: c[0], Y: c[1], Z: c[2]})
	}
	mean = mean.Mul(1 / float64(len(obs)))

	cov := mat.NewSymDense(3, nil)
	if len(obs) > 1 {
		stat.CovarianceMatrix(cov, data, nil)
	}
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, cov.At(i, i)+minVariance)
	}
	return NewComponent(mean, cov, float64(len(obs))/total)
}
