package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	// DefaultSIAPURL is the SDSS DR17 image access endpoint.
	DefaultSIAPURL = "https://skyserver.sdss.org/dr17/SkyServerWS/SIAP/getSIAP"
	// DefaultBandMarker selects the r-band row of the metadata table.
	DefaultBandMarker = "Filter r"
	// DefaultCutoutSize is the nominal cutout edge in pixels.
	DefaultCutoutSize = 128
	// DefaultPixelScaleArcsec is the SDSS pixel scale.
	DefaultPixelScaleArcsec = 0.4
)

// Geometry describes the cutout window requested from the survey.
type Geometry struct {
	CutoutSize       int
	PixelScaleArcsec float64
}

// DefaultGeometry returns the 128 pixel, 0.4 arcsec/pixel geometry.
func DefaultGeometry() Geometry {
	return Geometry{
		CutoutSize:       DefaultCutoutSize,
		PixelScaleArcsec: DefaultPixelScaleArcsec,
	}
}

// HalfSize is the offset from the center pixel to the window edges.
func (g Geometry) HalfSize() int {
	return g.CutoutSize / 2
}

// SizeDegrees is the angular edge of the cutout, sent as the SIAP SIZE parameter.
func (g Geometry) SizeDegrees() float64 {
	return float64(g.CutoutSize) * (g.PixelScaleArcsec / 3600.0)
}

// Validate checks that the geometry can produce a window.
func (g Geometry) Validate() error {
	if g.CutoutSize < 2 {
		return errors.Errorf("cutout size must be at least 2 pixels, got %d", g.CutoutSize)
	}
	if g.PixelScaleArcsec <= 0 {
		return errors.Errorf("pixel scale must be positive, got %g", g.PixelScaleArcsec)
	}
	return nil
}

// DBConfig holds database configuration for the outcome ledger
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a ledger database was configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// Config holds all configuration for the application
type Config struct {
	SIAPURL            string
	BandMarker         string
	Geometry           Geometry
	OutputDir          string
	HTTPTimeout        time.Duration
	CatalogConcurrency int
	CronSchedule       string
	DB                 DBConfig
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		SIAPURL:            DefaultSIAPURL,
		BandMarker:         DefaultBandMarker,
		Geometry:           DefaultGeometry(),
		OutputDir:          "./out",
		CatalogConcurrency: 1,
		CronSchedule:       "0 0 * * * *",
		DB: DBConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Load loads the configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := Default()

	if v := os.Getenv("SIAP_URL"); v != "" {
		config.SIAPURL = v
	}
	if v := os.Getenv("BAND_MARKER"); v != "" {
		config.BandMarker = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		config.OutputDir = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		config.CronSchedule = v
	}

	if size, err := strconv.Atoi(os.Getenv("CUTOUT_SIZE")); err == nil {
		config.Geometry.CutoutSize = size
	}

	if scale, err := strconv.ParseFloat(os.Getenv("PIXEL_SCALE_ARCSEC"), 64); err == nil {
		config.Geometry.PixelScaleArcsec = scale
	}

	// zero keeps the client without a timeout
	if timeout, err := strconv.Atoi(os.Getenv("HTTP_TIMEOUT")); err == nil && timeout >= 0 {
		config.HTTPTimeout = time.Duration(timeout) * time.Second
	}

	if n, err := strconv.Atoi(os.Getenv("CATALOG_CONCURRENCY")); err == nil && n > 0 {
		config.CatalogConcurrency = n
	}

	// Load database configuration
	config.DB.Host = os.Getenv("DB_HOST")
	config.DB.User = os.Getenv("DB_USER")
	config.DB.Password = os.Getenv("DB_PASSWORD")
	config.DB.Database = os.Getenv("DB_NAME")
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		config.DB.SSLMode = sslMode
	}

	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		config.DB.Port = port
	}

	if maxOpenConns, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS")); err == nil {
		config.DB.MaxOpenConns = maxOpenConns
	}

	if maxIdleConns, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS")); err == nil {
		config.DB.MaxIdleConns = maxIdleConns
	}

	if connMaxLifetime, err := strconv.Atoi(os.Getenv("DB_CONN_MAX_LIFETIME")); err == nil {
		config.DB.ConnMaxLifetime = time.Duration(connMaxLifetime) * time.Second
	}

	if err := config.Geometry.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid geometry")
	}

	if config.DB.Enabled() {
		if config.DB.User == "" {
			return nil, fmt.Errorf("DB_USER is required when DB_HOST is set")
		}
		if config.DB.Database == "" {
			return nil, fmt.Errorf("DB_NAME is required when DB_HOST is set")
		}
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}
