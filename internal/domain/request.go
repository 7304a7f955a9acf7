package domain

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// OutputExt is the extension of every written cutout.
const OutputExt = "fits"

// Request represents one object whose cutout should be fetched
type Request struct {
	Name      string
	RA        float64
	Dec       float64
	OutputDir string
}

// OutputPath returns the deterministic <dir>/<name>.fits location of the cutout.
func (r Request) OutputPath() string {
	return filepath.Join(r.OutputDir, r.Name+"."+OutputExt)
}

// Validate reports the first invalid field of the request.
func (r Request) Validate() error {
	if math.IsNaN(r.Dec) || r.Dec < -90 || r.Dec > 90 {
		return errors.Errorf("invalid coordinates: RA=%v, Dec=%v", r.RA, r.Dec)
	}
	if math.IsNaN(r.RA) || r.RA < 0 || r.RA >= 360 {
		return errors.Errorf("invalid coordinates: RA=%v, Dec=%v", r.RA, r.Dec)
	}
	if r.Name == "" {
		return errors.Errorf("invalid object name: %q", r.Name)
	}
	if strings.ContainsAny(r.Name, `/\`) {
		return errors.Errorf("invalid object name: %q contains a path separator", r.Name)
	}
	if r.OutputDir == "" {
		return errors.Errorf("invalid folder location: %q", r.OutputDir)
	}
	return nil
}
