package database

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"media-index/internal/metrics"
)

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"successful query", nil, "success"},
		{"failed query", errors.New("test error"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.DBQueryTotal.WithLabelValues("test_operation", tt.wantStatus)
			before := testutil.ToFloat64(counter)

			recordQuery("test_operation", time.Now(), tt.err)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestFTSIntegrityOK(t *testing.T) {
	tests := []struct {
		name string
		in   FTSIntegrity
		want bool
	}{
		{"empty", FTSIntegrity{}, true},
		{"matching", FTSIntegrity{MediaRows: 5, FTSRows: 5}, true},
		{"count mismatch", FTSIntegrity{MediaRows: 5, FTSRows: 4, Missing: 1}, false},
		{"same count but orphaned", FTSIntegrity{MediaRows: 5, FTSRows: 5, Missing: 1, Orphaned: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.OK())
		})
	}
}
