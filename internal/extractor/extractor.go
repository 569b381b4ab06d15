package extractor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-index/internal/logging"
)

// Backend names accepted by New.
const (
	BackendAuto     = "auto"
	BackendExifTool = "exiftool"
	BackendNative   = "native"
)

// DefaultTimeout bounds a single exiftool invocation.
const DefaultTimeout = 10 * time.Minute

// ErrNoOutput is returned when the extractor produced no output for a batch.
var ErrNoOutput = errors.New("extractor produced no output")

// Metadata holds the raw embedded fields for one file. Timestamps are
// returned exactly as stored in the file; interpretation happens later.
type Metadata struct {
	DateTimeOriginal string
	CreateDate       string
	GPSLatitude      *float64
	GPSLongitude     *float64
	Make             string
	Model            string
}

// HasGPS reports whether both coordinates are present.
func (m *Metadata) HasGPS() bool {
	return m != nil && m.GPSLatitude != nil && m.GPSLongitude != nil
}

// MetadataExtractor extracts metadata for a batch of absolute paths. The
// result is keyed by path; paths without metadata are absent.
type MetadataExtractor interface {
	Extract(ctx context.Context, paths []string) (map[string]Metadata, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Backend      string
	ExifToolPath string
	Timeout      time.Duration
}

// New returns the extractor selected by cfg.Backend.
func New(cfg Config) (MetadataExtractor, error) {
	bin := cfg.ExifToolPath
	if bin == "" {
		bin = "exiftool"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendAuto:
		resolved, err := exec.LookPath(bin)
		if err != nil {
			logging.Warn("exiftool not found (%v), falling back to native EXIF decoding", err)
			return NewNative(), nil
		}
		return NewExifTool(resolved, timeout), nil

	case BackendExifTool:
		resolved, err := exec.LookPath(bin)
		if err != nil {
			return nil, fmt.Errorf("exiftool backend requested but %q is not available: %w", bin, err)
		}
		return NewExifTool(resolved, timeout), nil

	case BackendNative:
		return NewNative(), nil

	default:
		return nil, fmt.Errorf("unknown extractor backend %q (want auto, exiftool or native)", cfg.Backend)
	}
}
