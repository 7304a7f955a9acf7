// Package wcs maps pixel indices of a survey image to sky coordinates and back.
//
// Only the gnomonic (TAN) projection is supported, optionally with SIP polynomial
// distortion, which covers the images served by the SDSS image access service.
// The linear part may be given as a CD matrix, as PC plus CDELT, or as CDELT alone.
package wcs

import (
	"math"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"
)

// Origin selects the pixel index convention of WorldToPixel and PixelToWorld.
// FITS headers count pixels from one; arrays count from zero.
type Origin int

const (
	ZeroBased Origin = 0
	OneBased  Origin = 1
)

const (
	deg = 180.0 / math.Pi
	rad = math.Pi / 180.0

	sipMaxIter   = 20
	sipTolerance = 1e-10
)

// ErrUnsupportedProjection is returned for headers that do not describe a TAN projection.
var ErrUnsupportedProjection = errors.New("unsupported projection")

// WCS is a two axis celestial coordinate system.
type WCS struct {
	CType   [2]string
	CRVal   [2]float64
	CRPix   [2]float64
	CUnit   [2]string
	CD      [2][2]float64
	LonPole float64
	LatPole float64
	RADeSys string
	Equinox float64
	SIP     *SIP

	inv [2][2]float64
}

// FromHeader builds the coordinate system described by an image header.
func FromHeader(hdr *fitsio.Header) (*WCS, error) {
	if hdr == nil {
		return nil, errors.New("nil header")
	}
	w := &WCS{
		CUnit: [2]string{"deg", "deg"},
	}
	for i := 0; i < 2; i++ {
		n := axisSuffix(i)
		ctype, ok := stringKey(hdr, "CTYPE"+n)
		if !ok {
			return nil, errors.Errorf("missing CTYPE%s", n)
		}
		w.CType[i] = strings.TrimSpace(ctype)
		if w.CRVal[i], ok = floatKey(hdr, "CRVAL"+n); !ok {
			return nil, errors.Errorf("missing CRVAL%s", n)
		}
		if w.CRPix[i], ok = floatKey(hdr, "CRPIX"+n); !ok {
			return nil, errors.Errorf("missing CRPIX%s", n)
		}
		if unit, ok := stringKey(hdr, "CUNIT"+n); ok && strings.TrimSpace(unit) != "" {
			w.CUnit[i] = strings.TrimSpace(unit)
		}
	}

	if err := w.checkProjection(); err != nil {
		return nil, err
	}

	if err := w.readLinear(hdr); err != nil {
		return nil, err
	}

	if strings.HasSuffix(w.CType[0], "-SIP") {
		sip, err := readSIP(hdr)
		if err != nil {
			return nil, err
		}
		w.SIP = sip
	}

	w.LonPole = defaultLonPole(w.CRVal[1])
	if v, ok := floatKey(hdr, "LONPOLE"); ok {
		w.LonPole = v
	}
	w.LatPole = w.CRVal[1]
	if v, ok := floatKey(hdr, "LATPOLE"); ok {
		w.LatPole = v
	}
	if v, ok := stringKey(hdr, "RADESYS"); ok {
		w.RADeSys = strings.TrimSpace(v)
	} else if v, ok := stringKey(hdr, "RADECSYS"); ok {
		w.RADeSys = strings.TrimSpace(v)
	}
	if v, ok := floatKey(hdr, "EQUINOX"); ok {
		w.Equinox = v
	} else if v, ok := floatKey(hdr, "EPOCH"); ok {
		w.Equinox = v
	}

	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WCS) checkProjection() error {
	lon, lat := strings.ToUpper(w.CType[0]), strings.ToUpper(w.CType[1])
	if !strings.HasPrefix(lon, "RA--") || !strings.HasPrefix(lat, "DEC-") {
		return errors.Wrapf(ErrUnsupportedProjection, "axes %q/%q", w.CType[0], w.CType[1])
	}
	if projCode(lon) != "TAN" || projCode(lat) != "TAN" {
		return errors.Wrapf(ErrUnsupportedProjection, "axes %q/%q", w.CType[0], w.CType[1])
	}
	return nil
}

func (w *WCS) readLinear(hdr *fitsio.Header) error {
	hasCD := false
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if v, ok := floatKey(hdr, "CD"+axisSuffix(i)+"_"+axisSuffix(j)); ok {
				w.CD[i][j] = v
				hasCD = true
			}
		}
	}
	if hasCD {
		return nil
	}

	pc := [2][2]float64{{1, 0}, {0, 1}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if v, ok := floatKey(hdr, "PC"+axisSuffix(i)+"_"+axisSuffix(j)); ok {
				pc[i][j] = v
			}
		}
	}
	for i := 0; i < 2; i++ {
		cdelt, ok := floatKey(hdr, "CDELT"+axisSuffix(i))
		if !ok {
			return errors.Errorf("missing CD matrix and CDELT%s", axisSuffix(i))
		}
		for j := 0; j < 2; j++ {
			w.CD[i][j] = cdelt * pc[i][j]
		}
	}
	return nil
}

func (w *WCS) init() error {
	det := w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]
	if det == 0 {
		return errors.New("singular linear transformation matrix")
	}
	w.inv = [2][2]float64{
		{w.CD[1][1] / det, -w.CD[0][1] / det},
		{-w.CD[1][0] / det, w.CD[0][0] / det},
	}
	return nil
}

// PixelToWorld converts pixel coordinates to right ascension and declination in degrees.
func (w *WCS) PixelToWorld(px, py float64, origin Origin) (ra, dec float64) {
	u := px + float64(OneBased-origin) - w.CRPix[0]
	v := py + float64(OneBased-origin) - w.CRPix[1]
	if w.SIP != nil {
		du, dv := w.SIP.distort(u, v)
		u, v = u+du, v+dv
	}
	x := w.CD[0][0]*u + w.CD[0][1]*v
	y := w.CD[1][0]*u + w.CD[1][1]*v

	phi, theta := tanToNative(x, y)
	return w.nativeToCelestial(phi, theta)
}

// WorldToPixel converts right ascension and declination in degrees to fractional
// pixel coordinates. The result is not clipped to the image.
func (w *WCS) WorldToPixel(ra, dec float64, origin Origin) (px, py float64, err error) {
	phi, theta := w.celestialToNative(ra, dec)
	x, y, err := nativeToTan(phi, theta)
	if err != nil {
		return 0, 0, err
	}
	u := w.inv[0][0]*x + w.inv[0][1]*y
	v := w.inv[1][0]*x + w.inv[1][1]*y
	if w.SIP != nil {
		u, v, err = w.SIP.undistort(u, v)
		if err != nil {
			return 0, 0, err
		}
	}
	return u + w.CRPix[0] - float64(OneBased-origin), v + w.CRPix[1] - float64(OneBased-origin), nil
}

// Slice returns the coordinate system of the sub-image starting at zero-based
// pixel (x0, y0).
func (w *WCS) Slice(x0, y0 int) *WCS {
	out := *w
	out.CRPix[0] -= float64(x0)
	out.CRPix[1] -= float64(y0)
	if w.SIP != nil {
		out.SIP = w.SIP.clone()
	}
	return &out
}

func (w *WCS) celestialToNative(ra, dec float64) (phi, theta float64) {
	a, d := ra*rad, dec*rad
	ap, dp := w.CRVal[0]*rad, w.CRVal[1]*rad
	php := w.LonPole * rad

	da := a - ap
	sinTheta := math.Sin(d)*math.Sin(dp) + math.Cos(d)*math.Cos(dp)*math.Cos(da)
	y := -math.Cos(d) * math.Sin(da)
	x := math.Sin(d)*math.Cos(dp) - math.Cos(d)*math.Sin(dp)*math.Cos(da)
	// atan2 keeps precision next to the reference point where asin does not
	theta = math.Atan2(sinTheta, math.Hypot(x, y))
	phi = php + math.Atan2(y, x)
	return phi * deg, theta * deg
}

func (w *WCS) nativeToCelestial(phi, theta float64) (ra, dec float64) {
	ph, th := phi*rad, theta*rad
	ap, dp := w.CRVal[0]*rad, w.CRVal[1]*rad
	php := w.LonPole * rad

	dph := ph - php
	sinDec := math.Sin(th)*math.Sin(dp) + math.Cos(th)*math.Cos(dp)*math.Cos(dph)
	y := -math.Cos(th) * math.Sin(dph)
	x := math.Sin(th)*math.Cos(dp) - math.Cos(th)*math.Sin(dp)*math.Cos(dph)
	dec = math.Atan2(sinDec, math.Hypot(x, y)) * deg
	ra = (ap + math.Atan2(y, x)) * deg
	return normalizeRA(ra), dec
}

// tanToNative inverts the gnomonic projection of intermediate coordinates in degrees.
func tanToNative(x, y float64) (phi, theta float64) {
	r := math.Hypot(x, y)
	if r == 0 {
		phi = 0
	} else {
		phi = math.Atan2(x, -y) * deg
	}
	theta = math.Atan2(deg, r) * deg
	return phi, theta
}

func nativeToTan(phi, theta float64) (x, y float64, err error) {
	s := math.Sin(theta * rad)
	if s <= 0 {
		return 0, 0, errors.Errorf("point is %.6g degrees from the projection center, beyond the TAN hemisphere", 90-theta)
	}
	r := deg * math.Cos(theta*rad) / s
	return r * math.Sin(phi*rad), -r * math.Cos(phi*rad), nil
}

func defaultLonPole(dec0 float64) float64 {
	if dec0 >= 90 {
		return 0
	}
	return 180
}

func projCode(ctype string) string {
	parts := strings.Split(strings.TrimRight(ctype, "-"), "-")
	for _, p := range parts[1:] {
		if p != "" {
			return p
		}
	}
	return ""
}

func axisSuffix(i int) string {
	return string(rune('1' + i))
}

func normalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}
