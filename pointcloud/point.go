package pointcloud

import "image/color"

// Data is what a cloud stores alongside a position. Only color is carried through PCD files.
type Data interface {
	HasColor() bool
	// RGB255 returns the color components, or zeros for an uncolored point.
	RGB255() (uint8, uint8, uint8)
	Color() color.Color
}

type basicData struct {
	c        color.NRGBA
	hasColor bool
}

// NewBasicData returns data for a point that is solely positional.
func NewBasicData() Data {
	return basicData{}
}

// NewColoredData returns data for a colored point.
func NewColoredData(c color.NRGBA) Data {
	return basicData{c: c, hasColor: true}
}

func (d basicData) HasColor() bool {
	return d.hasColor
}

func (d basicData) RGB255() (uint8, uint8, uint8) {
	return d.c.R, d.c.G, d.c.B
}

func (d basicData) Color() color.Color {
	return d.c
}
