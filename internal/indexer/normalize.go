package indexer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"media-index/internal/database"
	"media-index/internal/extractor"
	"media-index/internal/geocode"
	"media-index/internal/mediatypes"
)

const isoLayout = "2006-01-02T15:04:05"

// exifTimestamp matches "YYYY:MM:DD HH:MM:SS" with optional fractional
// seconds and zone. The zone is accepted but ignored: stored times are the
// camera's wall clock.
var exifTimestamp = regexp.MustCompile(
	`^(\d{4})[:\-](\d{2})[:\-](\d{2})[ T](\d{2}):(\d{2}):(\d{2})(?:\.\d+)?(?:Z|[+\-]\d{2}:?\d{2})?$`)

// ParseTimestamp parses an embedded timestamp into wall-clock time.
// All-zero dates and impossible calendar values do not parse.
func ParseTimestamp(raw string) (time.Time, bool) {
	m := exifTimestamp.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, false
	}

	var n [6]int
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	year, month, day, hour, minute, sec := n[0], n[1], n[2], n[3], n[4], n[5]

	if year == 0 || month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	if t.Day() != day {
		// e.g. Feb 30 normalized into March
		return time.Time{}, false
	}
	return t, true
}

// takenTime picks the capture time. DateTimeOriginal is preferred over
// CreateDate, but a value that parses wins over one that does not. If
// neither parses, the first non-empty raw value is kept verbatim; this
// includes placeholders such as "0000:00:00 00:00:00".
func takenTime(meta *extractor.Metadata) (taken *string, parsed time.Time, ok bool) {
	if meta == nil {
		return nil, time.Time{}, false
	}

	var candidates []string
	for _, raw := range []string{meta.DateTimeOriginal, meta.CreateDate} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		candidates = append(candidates, raw)
	}

	for _, raw := range candidates {
		if t, ok := ParseTimestamp(raw); ok {
			s := t.Format(isoLayout)
			return &s, t, true
		}
	}

	if len(candidates) > 0 {
		raw := candidates[0]
		return &raw, time.Time{}, false
	}
	return nil, time.Time{}, false
}

// coordinates returns the GPS position when both coordinates are present
// and finite. (0, 0) is a real place and is kept.
func coordinates(meta *extractor.Metadata) (lat, lon float64, ok bool) {
	if !meta.HasGPS() {
		return 0, 0, false
	}
	lat, lon = *meta.GPSLatitude, *meta.GPSLongitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

func optional(s string) *string {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return nil
	}
	return &s
}

// Normalize builds the record for entry from its filesystem facts, its
// embedded metadata (nil when none) and its resolved location. It is total:
// every input produces a valid record.
func Normalize(entry FileEntry, meta *extractor.Metadata, loc geocode.Location) database.MediaRecord {
	mtime := time.Unix(entry.ModTime, 0).UTC()

	rec := database.MediaRecord{
		Path:       entry.Path,
		Filename:   entry.Name,
		Ext:        entry.Ext,
		MediaType:  string(mediatypes.GetFileType(entry.Ext)),
		SizeBytes:  entry.Size,
		ModTime:    entry.ModTime,
		CreatedUTC: mtime.Format(isoLayout),
		Year:       mtime.Year(),
	}

	taken, parsed, ok := takenTime(meta)
	rec.TakenUTC = taken
	if ok {
		rec.Year = parsed.Year()
	}

	if lat, lon, ok := coordinates(meta); ok {
		rec.Lat = &lat
		rec.Lon = &lon

		if !loc.IsZero() {
			rec.CountryCode = optional(loc.CountryCode)
			rec.CountryName = optional(loc.CountryName)
			rec.City = optional(loc.City)
			rec.Admin1 = optional(loc.Admin1)
			rec.Admin2 = optional(loc.Admin2)
		}
	}

	if meta != nil {
		rec.CameraMake = optional(meta.Make)
		rec.CameraModel = optional(meta.Model)
	}

	return rec
}
