package service

import (
	"bytes"
	"context"
	"io/fs"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/basel-ax/skycutout/internal/config"
	"github.com/basel-ax/skycutout/internal/domain"
	"github.com/basel-ax/skycutout/internal/fitsimage"
	"github.com/basel-ax/skycutout/internal/infrastructure/skyserver"
	"github.com/basel-ax/skycutout/internal/wcs"
)

// ImageSource is the remote side of the pipeline.
type ImageSource interface {
	// QueryImages returns the raw SIAP VOTable for a field centered on (ra, dec)
	QueryImages(ctx context.Context, ra, dec, sizeDeg float64) ([]byte, error)

	// Download returns the bytes behind an image access URL
	Download(ctx context.Context, url string) ([]byte, error)
}

// CutoutService fetches one calibrated cutout per request
type CutoutService struct {
	source     ImageSource
	geometry   config.Geometry
	bandMarker string
	center     CenterPolicy
	logger     *log.Logger
}

// NewCutoutService creates a cutout service talking to the configured SkyServer
func NewCutoutService(cfg *config.Config, logger *log.Logger) *CutoutService {
	return NewCutoutServiceWithSource(skyserver.NewClient(cfg.SIAPURL, cfg.HTTPTimeout), cfg, logger)
}

// NewCutoutServiceWithSource creates a cutout service reading from src
func NewCutoutServiceWithSource(src ImageSource, cfg *config.Config, logger *log.Logger) *CutoutService {
	if logger == nil {
		logger = log.Default()
	}
	return &CutoutService{
		source:     src,
		geometry:   cfg.Geometry,
		bandMarker: cfg.BandMarker,
		center:     TruncateCenter,
		logger:     logger,
	}
}

// SetCenterPolicy changes how the projected center is turned into a pixel index.
func (s *CutoutService) SetCenterPolicy(p CenterPolicy) {
	s.center = p
}

// Fetch runs the whole pipeline for one object. Every failure is logged with the
// object name and reported in the returned outcome; nothing is retried.
func (s *CutoutService) Fetch(ctx context.Context, req domain.Request) domain.Outcome {
	if err := req.Validate(); err != nil {
		return s.fail(req, domain.KindInvalidInput, err, "Invalid request")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return s.fail(req, domain.KindInvalidInput, errors.Wrap(err, "failed to create output directory"), "Invalid folder location")
	}

	path := req.OutputPath()
	if _, err := os.Stat(path); err == nil {
		s.logf(req, "File already exists: %s", path)
		return domain.Outcome{Name: req.Name, Path: path, Status: domain.StatusSkipped}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return s.fail(req, domain.KindWriteFailure, errors.Wrap(err, "failed to stat output file"), "Cannot check output file")
	}

	s.logf(req, "Processing RA: %v, Dec: %v", req.RA, req.Dec)

	body, err := s.source.QueryImages(ctx, req.RA, req.Dec, s.geometry.SizeDegrees())
	if err != nil {
		return s.fail(req, domain.KindNetworkFailure, err, "Error in SIAP request")
	}

	table, err := skyserver.ParseVOTable(body)
	if err != nil {
		return s.fail(req, domain.KindParseFailure, err, "Error parsing VOTABLE")
	}

	row, found, err := table.SelectBand(s.bandMarker)
	if err != nil {
		return s.fail(req, domain.KindParseFailure, err, "Error parsing VOTABLE")
	}
	if !found {
		return s.fail(req, domain.KindMissingBand, errors.Errorf("no entry with %q among %d rows", s.bandMarker, len(table.Rows)), "No band entry found")
	}
	s.logf(req, "Using FITS URL: %s", row.URL)

	compressed, err := s.source.Download(ctx, row.URL)
	if err != nil {
		return s.fail(req, domain.KindNetworkFailure, err, "Error downloading FITS file")
	}

	raw, err := fitsimage.Decompress(bytes.NewReader(compressed))
	if err != nil {
		return s.fail(req, domain.KindDecompressFailure, err, "Error decompressing FITS file")
	}

	img, err := fitsimage.Decode(raw)
	if err != nil {
		return s.fail(req, domain.KindParseFailure, err, "Error opening FITS file")
	}

	frameWCS, err := wcs.FromHeader(img.Header)
	if err != nil {
		return s.fail(req, domain.KindParseFailure, err, "Error reading WCS")
	}

	fx, fy, err := frameWCS.WorldToPixel(req.RA, req.Dec, wcs.ZeroBased)
	if err != nil {
		return s.fail(req, domain.KindOutOfBounds, err, "Cannot project target")
	}
	px, py := s.center.apply(fx), s.center.apply(fy)

	win := CutoutWindow(px, py, img.Width, img.Height, s.geometry)
	if win.Empty() {
		return s.fail(req, domain.KindOutOfBounds, errors.Errorf("target pixel (%d, %d) is outside the %dx%d frame", px, py, img.Width, img.Height), "Cutout is empty")
	}

	var warnings []string
	if win.Undersized(s.geometry) {
		warnings = append(warnings, "cutout size is smaller than expected")
		s.logf(req, "Warning: cutout size is smaller than expected (%dx%d).", win.Width(), win.Height())
	}

	cut := Crop(img, win)
	cutWCS := frameWCS.Slice(win.X0, win.Y0)

	if err := fitsimage.WriteFile(path, cut, cutWCS.Cards()); err != nil {
		return s.fail(req, domain.KindWriteFailure, err, "Error writing cutout")
	}

	s.logf(req, "Cutout saved as %s", path)
	return domain.Outcome{
		Name:     req.Name,
		Path:     path,
		Status:   domain.StatusSaved,
		Warnings: warnings,
		Width:    cut.Width,
		Height:   cut.Height,
	}
}

func (s *CutoutService) fail(req domain.Request, kind domain.FailureKind, err error, msg string) domain.Outcome {
	s.logf(req, "%s: %v", msg, err)
	return domain.Failed(req, kind, err)
}

func (s *CutoutService) logf(req domain.Request, format string, args ...interface{}) {
	s.logger.Printf("[%s] "+format, append([]interface{}{req.Name}, args...)...)
}
