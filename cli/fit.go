package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/logging"
	"go.viam.com/gmmreg/pointcloud"
)

// FitAction is the corresponding Action for 'fit'.
func FitAction(c *cli.Context) error {
	logger := logging.Global()
	cloudPath := c.Path(fitFlagCloud)
	cloud, err := pointcloud.NewFromFile(cloudPath, logger)
	if err != nil {
		return err
	}
	cfg := gmm.FitConfig{
		Components:  c.Int(fitFlagComponents),
		MinVariance: c.Float64(fitFlagMinVariance),
	}
	model, err := gmm.FitModel(pointcloud.Points(cloud), cfg)
	if err != nil {
		return errors.Wrapf(err, "cannot fit %q", cloudPath)
	}
	out := c.Path(fitFlagOut)
	if err := gmm.WriteModelFile(out, model); err != nil {
		return err
	}
	infof(c.App.Writer, "fit %d components to %d points, wrote %s", model.Len(), cloud.Size(), out)
	return nil
}
