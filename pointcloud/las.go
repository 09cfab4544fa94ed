package pointcloud

import (
	"image/color"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/gmmreg/logging"
)

// LAS point formats 0 and 2 differ only by the RGB record.
const (
	lasFormatPlain   = 0
	lasFormatColored = 2
)

// NewFromLASFile returns a point cloud read from a LAS file. Colors are kept for point format 2.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(lf.Close)

	colored := lf.Header.PointFormatID == lasFormatColored
	pc := NewWithPrealloc(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		d := NewBasicData()
		if rgb := p.RgbData(); colored && rgb != nil {
			d = NewColoredData(color.NRGBA{
				R: uint8(rgb.Red / 256),
				G: uint8(rgb.Green / 256),
				B: uint8(rgb.Blue / 256),
				A: 255,
			})
		}
		if err := pc.Set(r3.Vector{X: data.X, Y: data.Y, Z: data.Z}, d); err != nil {
			return nil, err
		}
	}
	if logger != nil {
		logger.Debugw("read LAS point cloud", "file", fn, "points", pc.Size(), "format", lf.Header.PointFormatID)
	}
	return pc, nil
}

// WriteToLASFile writes the cloud to fn as LAS, in point format 2 when the cloud has color.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	hasColor := cloud.MetaData().HasColor
	format := byte(lasFormatPlain)
	if hasColor {
		format = lasFormatColored
	}
	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: format}); err != nil {
		return err
	}

	cloud.Iterate(func(pos r3.Vector, d Data) bool {
		rec := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			// single return, first of one
			BitField:      lidario.PointBitField{Value: 1 | 1<<3},
			PointSourceID: 1,
		}
		var lp lidario.LasPointer = rec
		if hasColor {
			var r, g, b uint8 = 255, 255, 255
			if d != nil && d.HasColor() {
				r, g, b = d.RGB255()
			}
			lp = &lidario.PointRecord2{
				PointRecord0: rec,
				RGB:          &lidario.RgbData{Red: uint16(r) * 256, Green: uint16(g) * 256, Blue: uint16(b) * 256},
			}
		}
		err = lf.AddLasPoint(lp)
		return err == nil
	})
	return err
}
