package extractor

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Native decodes EXIF in process. Files goexif cannot parse (most videos,
// PNG, HEIC) yield no metadata.
type Native struct {
	retry filesystem.RetryConfig
}

// NewNative creates a goexif-backed extractor.
func NewNative() *Native {
	return &Native{retry: filesystem.DefaultRetryConfig()}
}

// Name implements MetadataExtractor.
func (n *Native) Name() string { return BackendNative }

// Extract decodes each file in turn. Per-file failures are logged at debug
// level and leave the file out of the result; the batch itself never fails.
func (n *Native) Extract(_ context.Context, paths []string) (map[string]Metadata, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractorDuration.WithLabelValues(BackendNative).Observe(time.Since(start).Seconds())
	}()

	result := make(map[string]Metadata, len(paths))
	for _, p := range paths {
		md, err := n.decode(p)
		if err != nil {
			logging.Debug("No EXIF metadata for %s: %v", p, err)
			continue
		}
		result[p] = md
	}

	outcome := "ok"
	if len(result) < len(paths) {
		outcome = "partial"
	}
	metrics.ExtractorInvocations.WithLabelValues(BackendNative, outcome).Inc()
	metrics.ExtractorRecords.WithLabelValues(BackendNative).Add(float64(len(result)))

	return result, nil
}

func (n *Native) decode(path string) (Metadata, error) {
	f, err := filesystem.OpenWithRetry(path, n.retry)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Metadata{}, err
	}

	md := Metadata{
		DateTimeOriginal: tagString(x, exif.DateTimeOriginal),
		// exiftool's CreateDate is the EXIF DateTimeDigitized tag
		CreateDate: tagString(x, exif.DateTimeDigitized),
		Make:       tagString(x, exif.Make),
		Model:      tagString(x, exif.Model),
	}

	if lat, lon, err := x.LatLong(); err == nil && !math.IsNaN(lat) && !math.IsNaN(lon) {
		md.GPSLatitude = &lat
		md.GPSLongitude = &lon
	}

	return md, nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(s), "\x00")
}
