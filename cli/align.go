package cli

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/gmmreg/bb"
	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/logging"
	"go.viam.com/gmmreg/registration"
	"go.viam.com/gmmreg/utils"
)

// AlignAction is the corresponding Action for 'align'.
func AlignAction(c *cli.Context) error {
	logger := logging.Global()
	src, err := gmm.ReadModelFile(c.Path(alignFlagSource))
	if err != nil {
		return err
	}
	dst, err := gmm.ReadModelFile(c.Path(alignFlagTarget))
	if err != nil {
		return err
	}

	cfg := registration.DefaultConfig()
	if path := c.Path(alignFlagConfig); path != "" {
		fromFile, err := registration.ReadConfigFile(path)
		if err != nil {
			return err
		}
		cfg = *fromFile
	}
	if c.IsSet(alignFlagTimeBudget) {
		cfg.TimeBudgetSec = c.Duration(alignFlagTimeBudget).Seconds()
	}
	if c.IsSet(alignFlagWorkers) {
		cfg.Workers = c.Int(alignFlagWorkers)
	}
	if c.Bool(alignFlagSkipRotation) {
		cfg.SkipRotation = true
	}

	ctx := c.Context
	if c.Bool(alignFlagTrace) {
		ctx = logging.EnableDebugMode(ctx, "align")
	}
	res, err := registration.Register(ctx, src, dst, cfg, logger)
	if err != nil {
		return err
	}

	printf(c.App.Writer, "%s", resultTable(res))
	printf(c.App.Writer, "%s", res.Pose().String())
	if !res.Certified() {
		warningf(c.App.Writer, "alignment is not certified globally optimal")
	}

	if out := c.Path(alignFlagOut); out != "" {
		if err := gmm.WriteModelFile(out, src.Transform(res.Rotation, res.Translation)); err != nil {
			return err
		}
		infof(c.App.Writer, "wrote aligned source model to %s", out)
	}
	return nil
}

// resultTable renders one row per search stage.
func resultTable(res *registration.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Stage", "Result", "Status", "Cost", "Lower bound", "Gap", "Iterations", "Nodes", "Pruned", "Evaluations", "Elapsed",
	})
	appendStage := func(name string, r *bb.Result, point func(r3.Vector) string) {
		if r == nil {
			t.AppendRow(table.Row{name, "", "skipped", "", "", "", "", "", "", "", ""})
			return
		}
		t.AppendRow(table.Row{
			name,
			point(r.Point),
			r.Status.String(),
			fmt.Sprintf("%.6f", r.Cost),
			fmt.Sprintf("%.6f", r.LowerBound),
			fmt.Sprintf("%.2e", r.Gap),
			r.Iterations,
			r.NodesCreated,
			r.NodesPruned,
			r.Evaluations,
			r.Elapsed.String(),
		})
	}
	appendStage("rotation", res.RotationSearch, func(aa r3.Vector) string {
		return fmt.Sprintf("%.3f deg", utils.RadToDeg(aa.Norm()))
	})
	appendStage("translation", res.TranslationSearch, func(p r3.Vector) string {
		return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Z)
	})
	return t.Render()
}
