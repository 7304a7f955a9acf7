package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryDefaults(t *testing.T) {
	g := DefaultGeometry()
	assert.Equal(t, 128, g.CutoutSize)
	assert.Equal(t, 64, g.HalfSize())
	assert.InDelta(t, 128*(0.4/3600.0), g.SizeDegrees(), 1e-15)
	assert.NoError(t, g.Validate())
}

func TestGeometryValidate(t *testing.T) {
	assert.Error(t, Geometry{CutoutSize: 1, PixelScaleArcsec: 0.4}.Validate())
	assert.Error(t, Geometry{CutoutSize: 64, PixelScaleArcsec: 0}.Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSIAPURL, cfg.SIAPURL)
	assert.Equal(t, DefaultBandMarker, cfg.BandMarker)
	assert.Equal(t, DefaultGeometry(), cfg.Geometry)
	assert.Equal(t, time.Duration(0), cfg.HTTPTimeout)
	assert.Equal(t, 1, cfg.CatalogConcurrency)
	assert.False(t, cfg.DB.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SIAP_URL", "http://localhost:9999/siap")
	t.Setenv("BAND_MARKER", "Filter g")
	t.Setenv("CUTOUT_SIZE", "64")
	t.Setenv("PIXEL_SCALE_ARCSEC", "0.2")
	t.Setenv("HTTP_TIMEOUT", "15")
	t.Setenv("CATALOG_CONCURRENCY", "4")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "astro")
	t.Setenv("DB_NAME", "cutouts")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/siap", cfg.SIAPURL)
	assert.Equal(t, "Filter g", cfg.BandMarker)
	assert.Equal(t, Geometry{CutoutSize: 64, PixelScaleArcsec: 0.2}, cfg.Geometry)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 4, cfg.CatalogConcurrency)
	assert.True(t, cfg.DB.Enabled())
	assert.Equal(t, "host=db port=6543 user=astro password= dbname=cutouts sslmode=disable", cfg.GetDSN())
}

func TestLoadRejectsBadGeometry(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("CUTOUT_SIZE", "1")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresDBUser(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "cutouts")
	_, err := Load()
	assert.Error(t, err)
}
