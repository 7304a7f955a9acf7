package wcs

import (
	"fmt"
	"math"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"
)

// SIP holds the forward polynomial distortion coefficients, keyed by [p, q] for
// the term u^p v^q.
type SIP struct {
	AOrder int
	BOrder int
	A      map[[2]int]float64
	B      map[[2]int]float64
}

func readSIP(hdr *fitsio.Header) (*SIP, error) {
	aOrder, ok := intKey(hdr, "A_ORDER")
	if !ok {
		return nil, errors.New("SIP projection without A_ORDER")
	}
	bOrder, ok := intKey(hdr, "B_ORDER")
	if !ok {
		return nil, errors.New("SIP projection without B_ORDER")
	}
	sip := &SIP{
		AOrder: aOrder,
		BOrder: bOrder,
		A:      readPoly(hdr, "A", aOrder),
		B:      readPoly(hdr, "B", bOrder),
	}
	return sip, nil
}

func readPoly(hdr *fitsio.Header, prefix string, order int) map[[2]int]float64 {
	coeffs := make(map[[2]int]float64)
	for p := 0; p <= order; p++ {
		for q := 0; p+q <= order; q++ {
			if v, ok := floatKey(hdr, fmt.Sprintf("%s_%d_%d", prefix, p, q)); ok && v != 0 {
				coeffs[[2]int{p, q}] = v
			}
		}
	}
	return coeffs
}

func (s *SIP) distort(u, v float64) (du, dv float64) {
	return evalPoly(s.A, u, v), evalPoly(s.B, u, v)
}

// undistort solves u + f(u, v) = up, v + g(u, v) = vp by fixed point iteration.
func (s *SIP) undistort(up, vp float64) (u, v float64, err error) {
	u, v = up, vp
	for i := 0; i < sipMaxIter; i++ {
		du, dv := s.distort(u, v)
		nu, nv := up-du, vp-dv
		if math.Abs(nu-u) < sipTolerance && math.Abs(nv-v) < sipTolerance {
			return nu, nv, nil
		}
		u, v = nu, nv
	}
	return 0, 0, errors.New("SIP inversion did not converge")
}

func (s *SIP) clone() *SIP {
	out := &SIP{AOrder: s.AOrder, BOrder: s.BOrder, A: map[[2]int]float64{}, B: map[[2]int]float64{}}
	for k, v := range s.A {
		out.A[k] = v
	}
	for k, v := range s.B {
		out.B[k] = v
	}
	return out
}

func evalPoly(coeffs map[[2]int]float64, u, v float64) float64 {
	sum := 0.0
	for pq, c := range coeffs {
		sum += c * math.Pow(u, float64(pq[0])) * math.Pow(v, float64(pq[1]))
	}
	return sum
}
