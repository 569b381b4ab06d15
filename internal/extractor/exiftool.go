package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// exiftoolArgs is the fixed field request. "-@ -" reads further arguments,
// one per line, from stdin so batch size is not limited by ARG_MAX and paths
// starting with "-" are never taken for options.
var exiftoolArgs = []string{
	"-json",
	"-n",
	"-charset", "filename=utf8",
	"-DateTimeOriginal",
	"-CreateDate",
	"-GPSLatitude",
	"-GPSLongitude",
	"-GPSLatitudeRef",
	"-GPSLongitudeRef",
	"-Make",
	"-Model",
	"-@", "-",
}

// ExifTool extracts metadata by running the exiftool binary once per batch.
type ExifTool struct {
	bin     string
	timeout time.Duration
}

// NewExifTool creates an extractor that runs bin.
func NewExifTool(bin string, timeout time.Duration) *ExifTool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExifTool{bin: bin, timeout: timeout}
}

// Name implements MetadataExtractor.
func (e *ExifTool) Name() string { return BackendExifTool }

// exiftoolRecord is one element of exiftool's JSON array.
type exiftoolRecord struct {
	SourceFile       string     `json:"SourceFile"`
	DateTimeOriginal flexString `json:"DateTimeOriginal"`
	CreateDate       flexString `json:"CreateDate"`
	GPSLatitude      flexFloat  `json:"GPSLatitude"`
	GPSLongitude     flexFloat  `json:"GPSLongitude"`
	GPSLatitudeRef   flexString `json:"GPSLatitudeRef"`
	GPSLongitudeRef  flexString `json:"GPSLongitudeRef"`
	Make             flexString `json:"Make"`
	Model            flexString `json:"Model"`
}

// Extract runs exiftool over paths. A nonzero exit status is not an error
// as long as exiftool printed JSON: it exits 1 whenever any single file was
// unreadable.
//
// The run's context is detached: once a batch starts it runs
// to completion or times out.
func (e *ExifTool) Extract(ctx context.Context, paths []string) (map[string]Metadata, error) {
	if len(paths) == 0 {
		return map[string]Metadata{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.ExtractorDuration.WithLabelValues(BackendExifTool).Observe(time.Since(start).Seconds())
	}()

	var argfile strings.Builder
	requested := make(map[string]bool, len(paths))
	for _, p := range paths {
		if strings.ContainsAny(p, "\r\n") {
			// Not representable in an argfile.
			logging.Warn("Skipping metadata extraction for path containing a newline: %q", p)
			continue
		}
		argfile.WriteString(p)
		argfile.WriteByte('\n')
		requested[p] = true
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.bin, exiftoolArgs...)
	cmd.Stdin = strings.NewReader(argfile.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		metrics.ExtractorInvocations.WithLabelValues(BackendExifTool, "no_output").Inc()
		return nil, fmt.Errorf("failed to run exiftool: %w", runErr)
	}

	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		metrics.ExtractorInvocations.WithLabelValues(BackendExifTool, "no_output").Inc()
		if runErr != nil {
			return nil, fmt.Errorf("%w: %v - %s", ErrNoOutput, runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, ErrNoOutput
	}

	result, err := parseExifToolOutput(stdout.Bytes(), requested)
	if err != nil {
		metrics.ExtractorInvocations.WithLabelValues(BackendExifTool, "no_output").Inc()
		return nil, err
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "partial"
		logging.Debug("exiftool exited with %v for %d files, using partial output: %s",
			runErr, len(paths), strings.TrimSpace(stderr.String()))
	}
	metrics.ExtractorInvocations.WithLabelValues(BackendExifTool, outcome).Inc()
	metrics.ExtractorRecords.WithLabelValues(BackendExifTool).Add(float64(len(result)))

	return result, nil
}

// parseExifToolOutput maps exiftool's JSON array back to requested paths
// through SourceFile. Elements for paths that were not requested are ignored.
func parseExifToolOutput(out []byte, requested map[string]bool) (map[string]Metadata, error) {
	var records []exiftoolRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output: %w", err)
	}

	result := make(map[string]Metadata, len(records))
	for _, r := range records {
		if !requested[r.SourceFile] {
			continue
		}
		result[r.SourceFile] = Metadata{
			DateTimeOriginal: strings.TrimSpace(string(r.DateTimeOriginal)),
			CreateDate:       strings.TrimSpace(string(r.CreateDate)),
			GPSLatitude:      signed(r.GPSLatitude.ptr(), string(r.GPSLatitudeRef), "S"),
			GPSLongitude:     signed(r.GPSLongitude.ptr(), string(r.GPSLongitudeRef), "W"),
			Make:             string(r.Make),
			Model:            string(r.Model),
		}
	}
	return result, nil
}

// signed applies the hemisphere reference to an unsigned coordinate. With
// -n the composite GPS tags are already signed, in which case this is a
// no-op.
func signed(v *float64, ref, negative string) *float64 {
	if v == nil {
		return nil
	}
	if *v > 0 && strings.EqualFold(strings.TrimSpace(ref), negative) {
		n := -*v
		return &n
	}
	return v
}
