package service

import (
	"math"

	"github.com/basel-ax/skycutout/internal/config"
	"github.com/basel-ax/skycutout/internal/fitsimage"
)

// CenterPolicy turns the projected fractional pixel into the integer window center.
type CenterPolicy int

const (
	// TruncateCenter drops the fractional part toward zero. It can bias the
	// center by up to one pixel and matches the cutouts produced so far.
	TruncateCenter CenterPolicy = iota
	// RoundCenter rounds to the nearest pixel.
	RoundCenter
)

func (p CenterPolicy) apply(v float64) int {
	if p == RoundCenter {
		return int(math.Round(v))
	}
	return int(v)
}

// Window is the half-open pixel range [X0, X1) x [Y0, Y1) of a cutout.
type Window struct {
	X0, X1 int
	Y0, Y1 int
}

// CutoutWindow clips the square of the configured size centered on (px, py) to a
// width x height image. No padding is added, so the window shrinks near the edges.
func CutoutWindow(px, py, width, height int, g config.Geometry) Window {
	half := g.HalfSize()
	return Window{
		X0: max(px-half, 0),
		X1: min(px+half, width),
		Y0: max(py-half, 0),
		Y1: min(py+half, height),
	}
}

func (w Window) Width() int {
	return w.X1 - w.X0
}

func (w Window) Height() int {
	return w.Y1 - w.Y0
}

// Empty reports whether the window holds no pixel, which happens when the center
// lies farther than half a cutout outside the image.
func (w Window) Empty() bool {
	return w.Width() <= 0 || w.Height() <= 0
}

// Undersized reports whether the window is smaller than the nominal cutout.
func (w Window) Undersized(g config.Geometry) bool {
	return w.Width() < g.CutoutSize || w.Height() < g.CutoutSize
}

// Crop copies the window out of img.
func Crop(img *fitsimage.Image, w Window) *fitsimage.Image {
	out := &fitsimage.Image{
		Width:  w.Width(),
		Height: w.Height(),
		Bitpix: img.Bitpix,
		Pixels: make([]float64, 0, w.Width()*w.Height()),
	}
	for y := w.Y0; y < w.Y1; y++ {
		row := img.Pixels[y*img.Width+w.X0 : y*img.Width+w.X1]
		out.Pixels = append(out.Pixels, row...)
	}
	return out
}
