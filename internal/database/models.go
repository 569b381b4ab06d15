package database

import "time"

// MediaRecord is one indexed media file. Path is the unique key; every
// other field is recomputed whenever the file's signature changes.
//
// Pointer fields are nullable columns.
type MediaRecord struct {
	Path        string   `json:"path"`
	Filename    string   `json:"filename"`
	Ext         string   `json:"ext"`
	MediaType   string   `json:"mediaType"`
	SizeBytes   int64    `json:"sizeBytes"`
	ModTime     int64    `json:"mtime"`
	CreatedUTC  string   `json:"createdUtc"`
	TakenUTC    *string  `json:"takenUtc,omitempty"`
	Year        int      `json:"year"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	CountryCode *string  `json:"countryCode,omitempty"`
	CountryName *string  `json:"countryName,omitempty"`
	City        *string  `json:"city,omitempty"`
	Admin1      *string  `json:"admin1,omitempty"`
	Admin2      *string  `json:"admin2,omitempty"`
	CameraMake  *string  `json:"cameraMake,omitempty"`
	CameraModel *string  `json:"cameraModel,omitempty"`
}

// Signature is the change-detection key stored for every indexed path.
type Signature struct {
	Size    int64
	ModTime int64
}

// IndexStats summarizes the contents of the index.
type IndexStats struct {
	TotalMedia    int `json:"totalMedia"`
	TotalImages   int `json:"totalImages"`
	TotalVideos   int `json:"totalVideos"`
	WithLocation  int `json:"withLocation"`
	WithTakenTime int `json:"withTakenTime"`
	Countries     int `json:"countries"`
	FTSRows       int `json:"ftsRows"`
}

// FTSIntegrity describes how well the full-text shadow table matches media.
type FTSIntegrity struct {
	MediaRows int `json:"mediaRows"`
	FTSRows   int `json:"ftsRows"`
	Missing   int `json:"missing"`  // media rows without a shadow row
	Orphaned  int `json:"orphaned"` // shadow rows without a media row
}

// OK reports whether every media row has exactly one shadow row.
func (f FTSIntegrity) OK() bool {
	return f.MediaRows == f.FTSRows && f.Missing == 0 && f.Orphaned == 0
}

// RunSummary is the persisted outcome of the most recent index run.
type RunSummary struct {
	CompletedAt            time.Time `json:"completedAt"`
	Duration               string    `json:"duration"`
	Scanned                int       `json:"scanned"`
	Unchanged              int       `json:"unchanged"`
	ToProcess              int       `json:"toProcess"`
	Indexed                int       `json:"indexed"`
	Pruned                 int       `json:"pruned"`
	Batches                int       `json:"batches"`
	BatchesWithoutMetadata int       `json:"batchesWithoutMetadata"`
	GeocodeFailures        int       `json:"geocodeFailures"`
	Interrupted            bool      `json:"interrupted,omitempty"`
}
