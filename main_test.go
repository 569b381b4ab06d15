package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/geocode"
	"media-index/internal/startup"
)

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"/some/path"})
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})

	assert.Error(t, cmd.Execute())
}

func TestRootCommandVersion(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, startup.Version, cmd.Version)
	assert.Equal(t, "media-index", cmd.Use)
}

func TestNewGeocoderDisabled(t *testing.T) {
	geo, err := newGeocoder(startup.GeocoderConfig{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, geocode.Disabled{}, geo)
	assert.True(t, geo.Resolve(48.8566, 2.3522).IsZero())
}

func TestNewGeocoderUnknownDataset(t *testing.T) {
	_, err := newGeocoder(startup.GeocoderConfig{Enabled: true, Dataset: "streets", CacheSize: 10})
	assert.Error(t, err)
}

func TestNewGeocoderResolvesParis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dataset load")
	}

	geo, err := newGeocoder(startup.GeocoderConfig{
		Enabled:       true,
		Dataset:       geocode.DatasetCities,
		CacheSize:     10,
		MaxDistanceKm: geocode.DefaultMaxDistanceKm,
	})
	require.NoError(t, err)

	loc := geo.Resolve(48.8566, 2.3522)
	assert.Equal(t, "FR", loc.CountryCode)
	assert.Equal(t, "France", loc.CountryName)
	assert.Equal(t, "Paris", loc.City)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
