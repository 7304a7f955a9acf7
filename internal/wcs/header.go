package wcs

import (
	"fmt"
	"strings"

	"github.com/astrogo/fitsio"
)

// Cards renders the coordinate system as header cards. The linear part is
// written as PC with unit CDELT.
func (w *WCS) Cards() []fitsio.Card {
	ctype := w.CType
	if w.SIP != nil {
		for i := range ctype {
			if !strings.HasSuffix(ctype[i], "-SIP") {
				ctype[i] += "-SIP"
			}
		}
	} else {
		for i := range ctype {
			ctype[i] = strings.TrimSuffix(ctype[i], "-SIP")
		}
	}

	cards := []fitsio.Card{
		{Name: "WCSAXES", Value: 2, Comment: "Number of coordinate axes"},
		{Name: "CRPIX1", Value: w.CRPix[0], Comment: "Pixel coordinate of reference point"},
		{Name: "CRPIX2", Value: w.CRPix[1], Comment: "Pixel coordinate of reference point"},
		{Name: "PC1_1", Value: w.CD[0][0], Comment: "Coordinate transformation matrix element"},
		{Name: "PC1_2", Value: w.CD[0][1], Comment: "Coordinate transformation matrix element"},
		{Name: "PC2_1", Value: w.CD[1][0], Comment: "Coordinate transformation matrix element"},
		{Name: "PC2_2", Value: w.CD[1][1], Comment: "Coordinate transformation matrix element"},
		{Name: "CDELT1", Value: 1.0, Comment: "[deg] Coordinate increment at reference point"},
		{Name: "CDELT2", Value: 1.0, Comment: "[deg] Coordinate increment at reference point"},
		{Name: "CUNIT1", Value: w.CUnit[0], Comment: "Units of coordinate increment and value"},
		{Name: "CUNIT2", Value: w.CUnit[1], Comment: "Units of coordinate increment and value"},
		{Name: "CTYPE1", Value: ctype[0], Comment: "Right ascension, gnomonic projection"},
		{Name: "CTYPE2", Value: ctype[1], Comment: "Declination, gnomonic projection"},
		{Name: "CRVAL1", Value: w.CRVal[0], Comment: "[deg] Coordinate value at reference point"},
		{Name: "CRVAL2", Value: w.CRVal[1], Comment: "[deg] Coordinate value at reference point"},
		{Name: "LONPOLE", Value: w.LonPole, Comment: "[deg] Native longitude of celestial pole"},
		{Name: "LATPOLE", Value: w.LatPole, Comment: "[deg] Native latitude of celestial pole"},
	}
	if w.RADeSys != "" {
		cards = append(cards, fitsio.Card{Name: "RADESYS", Value: w.RADeSys, Comment: "Equatorial coordinate system"})
	}
	if w.Equinox != 0 {
		cards = append(cards, fitsio.Card{Name: "EQUINOX", Value: w.Equinox, Comment: "[yr] Equinox of equatorial coordinates"})
	}
	if w.SIP != nil {
		cards = append(cards, polyCards("A", w.SIP.AOrder, w.SIP.A)...)
		cards = append(cards, polyCards("B", w.SIP.BOrder, w.SIP.B)...)
	}
	return cards
}

func polyCards(prefix string, order int, coeffs map[[2]int]float64) []fitsio.Card {
	cards := []fitsio.Card{{Name: prefix + "_ORDER", Value: order, Comment: "SIP polynomial order"}}
	for p := 0; p <= order; p++ {
		for q := 0; p+q <= order; q++ {
			if c, ok := coeffs[[2]int{p, q}]; ok {
				cards = append(cards, fitsio.Card{Name: fmt.Sprintf("%s_%d_%d", prefix, p, q), Value: c})
			}
		}
	}
	return cards
}

func floatKey(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

func intKey(hdr *fitsio.Header, key string) (int, bool) {
	v, ok := floatKey(hdr, key)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func stringKey(hdr *fitsio.Header, key string) (string, bool) {
	card := hdr.Get(key)
	if card == nil {
		return "", false
	}
	s, ok := card.Value.(string)
	return s, ok
}
