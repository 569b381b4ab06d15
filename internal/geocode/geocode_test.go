package geocode

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/sams96/rgeo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

type fakeBackend struct {
	mu     sync.Mutex
	calls  int
	places map[[2]float64]Place
	err    error
	panics bool
}

func (f *fakeBackend) Lookup(lat, lon float64) (Place, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.panics {
		panic("polygon index corrupted")
	}
	if f.err != nil {
		return Place{}, f.err
	}
	p, ok := f.places[[2]float64{lat, lon}]
	if !ok {
		return Place{}, ErrNoMatch
	}
	return p, nil
}

func newFake() *fakeBackend {
	return &fakeBackend{places: map[[2]float64]Place{
		{48.8566, 2.3522}: {CountryCode: " fr ", CountryName: "Republic of France", City: "Paris", Admin1: "Île-de-France", Admin2: "Paris"},
		{0, 0}:            {CountryName: "Null Island"},
		{1, 1}:            {CountryCode: "zz", CountryName: ""},
	}}
}

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"paris", 48.8566, 2.3522, true},
		{"origin", 0, 0, true},
		{"north pole", 90, 0, true},
		{"antimeridian", 0, -180, true},
		{"lat too large", 90.0001, 0, false},
		{"lon too small", 0, -180.5, false},
		{"nan", math.NaN(), 0, false},
		{"inf", 0, math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCoordinate(tt.lat, tt.lon))
		})
	}
}

func TestResolveNormalizesCountry(t *testing.T) {
	r := NewResolver(newFake(), 0)

	loc := r.Resolve(48.8566, 2.3522)
	assert.Equal(t, Location{
		CountryCode: "FR",
		CountryName: "France",
		City:        "Paris",
		Admin1:      "Île-de-France",
		Admin2:      "Paris",
	}, loc)
}

func TestResolveNameFallbacks(t *testing.T) {
	r := NewResolver(newFake(), 0)

	assert.Equal(t, Location{CountryName: "Null Island"}, r.Resolve(0, 0))
	assert.Equal(t, "ZZ", r.Resolve(1, 1).CountryCode)
	assert.Equal(t, "ZZ", r.Resolve(1, 1).CountryName)
}

func TestResolveNoMatchIsZero(t *testing.T) {
	r := NewResolver(newFake(), 0)

	loc := r.Resolve(-40, -140) // open ocean
	assert.True(t, loc.IsZero())
}

func TestResolveInvalidSkipsBackend(t *testing.T) {
	fake := newFake()
	r := NewResolver(fake, 0)

	assert.True(t, r.Resolve(91, 0).IsZero())
	assert.True(t, r.Resolve(math.NaN(), 2).IsZero())
	assert.Zero(t, fake.calls)
}

func TestResolveRecoversFromPanic(t *testing.T) {
	fake := newFake()
	fake.panics = true
	r := NewResolver(fake, 0)

	var loc Location
	assert.NotPanics(t, func() { loc = r.Resolve(48.8566, 2.3522) })
	assert.True(t, loc.IsZero())
}

func TestResolveErrorsAreNotCached(t *testing.T) {
	fake := newFake()
	fake.err = errors.New("backend unavailable")
	r := NewResolver(fake, 0)

	assert.True(t, r.Resolve(48.8566, 2.3522).IsZero())
	assert.Zero(t, r.CacheLen())

	fake.err = nil
	assert.Equal(t, "FR", r.Resolve(48.8566, 2.3522).CountryCode)
	assert.Equal(t, 2, fake.calls)
}

func TestResolveMemoizes(t *testing.T) {
	fake := newFake()
	r := NewResolver(fake, 2)

	for i := 0; i < 3; i++ {
		r.Resolve(48.8566, 2.3522)
		r.Resolve(-40, -140)
	}
	assert.Equal(t, 2, fake.calls, "no-match results are cached too")
	assert.Equal(t, 2, r.CacheLen())

	// A third distinct key evicts the least recently used one.
	r.Resolve(0, 0)
	assert.Equal(t, 2, r.CacheLen())
	r.Resolve(48.8566, 2.3522)
	assert.Equal(t, 4, fake.calls)
}

func TestResolveConcurrent(t *testing.T) {
	r := NewResolver(newFake(), 10)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, "FR", r.Resolve(48.8566, 2.3522).CountryCode)
			}
		}()
	}
	wg.Wait()
}

func TestCountryName(t *testing.T) {
	tests := []struct {
		code, fallback, want string
	}{
		{"FR", "", "France"},
		{"DE", "Deutschland", "Germany"},
		{"US", "", "United States"},
		{"", "Somewhere", "Somewhere"},
		{"-99", "Kosovo", "Kosovo"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.fallback, func(t *testing.T) {
			assert.Equal(t, tt.want, CountryName(tt.code, tt.fallback))
		})
	}
}

func TestDisabled(t *testing.T) {
	var r GeoResolver = Disabled{}
	assert.True(t, r.Resolve(48.8566, 2.3522).IsZero())
}

func TestCountryCode(t *testing.T) {
	tests := []struct {
		name string
		loc  rgeo.Location
		want string
	}{
		{"alpha-2", rgeo.Location{Country: "Germany", CountryCode2: "DE", CountryCode3: "DEU"}, "DE"},
		{"alpha-3 only", rgeo.Location{CountryCode2: "-99", CountryCode3: "FRA"}, "FR"},
		{"province code", rgeo.Location{Country: "France", CountryCode2: "-99", CountryCode3: "-99", ProvinceCode: "FR-75"}, "FR"},
		{"country name", rgeo.Location{Country: "Norway", CountryCode2: "-99", CountryCode3: "-99"}, "NO"},
		{"country name any case", rgeo.Location{Country: "france", CountryCode2: "-99"}, "FR"},
		{"nothing usable", rgeo.Location{Country: "Atlantis", CountryCode2: "-99", CountryCode3: "-99"}, ""},
		{"empty", rgeo.Location{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countryCode(tt.loc))
		})
	}
}

func TestRegionByName(t *testing.T) {
	assert.Equal(t, "FR", regionByName("France"))
	assert.Equal(t, "NO", regionByName(" Norway "))
	assert.Equal(t, "", regionByName(""))
	assert.Equal(t, "", regionByName("Middle Earth"))
}

// gzipCities encodes cities as a gzipped feature collection in the
// Natural Earth urban-area layout.
func gzipCities(t *testing.T, cities ...city) []byte {
	t.Helper()

	fc := geojson.FeatureCollection{}
	for _, c := range cities {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{c.lon, c.lat}),
			Properties: map[string]interface{}{
				"name_conve": c.name,
				"mean_bb_xc": c.lon,
				"mean_bb_yc": c.lat,
			},
		})
	}
	raw, err := json.Marshal(&fc)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCityIndexNearest(t *testing.T) {
	data := gzipCities(t,
		city{name: "Honolulu", lat: 21.348, lon: -157.8915},
		city{name: "Annecy", lat: 45.9214, lon: 6.1042},
		city{name: "Geneva2", lat: 46.2094, lon: 6.1424},
		city{name: "", lat: 10, lon: 10},
	)

	idx, err := newCityIndex(data, 100)
	require.NoError(t, err)
	assert.Len(t, idx.cities, 3, "unnamed features are skipped")

	c, ok := idx.nearest(21.27, -157.83) // just off Waikiki
	require.True(t, ok)
	assert.Equal(t, "Honolulu", c.name)

	c, ok = idx.nearest(45.9237, 6.8694) // Chamonix, ~59 km from Annecy
	require.True(t, ok)
	assert.Equal(t, "Annecy", c.name)

	c, ok = idx.nearest(46.25, 6.15)
	require.True(t, ok)
	assert.Equal(t, "Geneva", c.name, "trailing 2 in Natural Earth names is dropped")

	_, ok = idx.nearest(-40, -140)
	assert.False(t, ok, "open ocean is beyond the distance limit")
}

func TestCityIndexUnlimited(t *testing.T) {
	idx, err := newCityIndex(gzipCities(t, city{name: "Honolulu", lat: 21.348, lon: -157.8915}), 0)
	require.NoError(t, err)

	c, ok := idx.nearest(-40, -140)
	require.True(t, ok)
	assert.Equal(t, "Honolulu", c.name)
}

func TestCityIndexRejectsBadData(t *testing.T) {
	_, err := newCityIndex([]byte("not gzip"), 100)
	assert.Error(t, err)

	_, err = newCityIndex(gzipCities(t), 100)
	assert.Error(t, err)
}

func TestRGeoBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dataset load")
	}

	for _, dataset := range []string{DatasetCountries, DatasetProvinces, DatasetCities} {
		t.Run(dataset, func(t *testing.T) {
			backend, err := NewRGeo(dataset, DefaultMaxDistanceKm)
			require.NoError(t, err)

			r := NewResolver(backend, 0)

			paris := r.Resolve(48.8566, 2.3522)
			assert.Equal(t, "FR", paris.CountryCode)
			assert.Equal(t, "France", paris.CountryName)
			assert.Empty(t, paris.Admin2)

			oslo := r.Resolve(59.91, 10.75)
			assert.Equal(t, "NO", oslo.CountryCode)
			assert.Equal(t, "Norway", oslo.CountryName)

			berlin := r.Resolve(52.52, 13.405)
			assert.Equal(t, "DE", berlin.CountryCode)
			assert.Equal(t, "Germany", berlin.CountryName)

			assert.True(t, r.Resolve(-40, -140).IsZero())
		})
	}
}

func TestRGeoCitiesNearestFallback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dataset load")
	}

	backend, err := NewRGeo(DatasetCities, DefaultMaxDistanceKm)
	require.NoError(t, err)
	r := NewResolver(backend, 0)

	paris := r.Resolve(48.8566, 2.3522)
	assert.Equal(t, "Paris", paris.City)
	assert.Equal(t, "Paris", paris.Admin1)

	// Outside every polygon, a few hundred metres off Waikiki beach.
	offshore := r.Resolve(21.27, -157.83)
	assert.Equal(t, "US", offshore.CountryCode)
	assert.Equal(t, "Honolulu", offshore.City)
	assert.Equal(t, "Hawaii", offshore.Admin1)

	// Inside France but outside any urban area.
	chamonix := r.Resolve(45.9237, 6.8694)
	assert.Equal(t, "FR", chamonix.CountryCode)
	assert.Equal(t, "Haute-Savoie", chamonix.Admin1)
	assert.Equal(t, "Annecy", chamonix.City)
}

func TestRGeoConcurrentLookups(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dataset load")
	}

	backend, err := NewRGeo(DatasetCountries, DefaultMaxDistanceKm)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				p, err := backend.Lookup(52.52, 13.405)
				assert.NoError(t, err)
				assert.Equal(t, "DE", p.CountryCode)
			}
		}()
	}
	wg.Wait()
}

func TestNewRGeoUnknownDataset(t *testing.T) {
	_, err := NewRGeo("planets", DefaultMaxDistanceKm)
	assert.Error(t, err)
}
