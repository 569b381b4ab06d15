package geocode

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sams96/rgeo"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/language"

	"media-index/internal/logging"
)

// Dataset names accepted by NewRGeo.
const (
	DatasetCountries = "countries"
	DatasetProvinces = "provinces"
	DatasetCities    = "cities"
)

// DefaultMaxDistanceKm bounds the nearest-city search.
const DefaultMaxDistanceKm = 100

// RGeo is an offline Backend over Natural Earth polygons. With the cities
// dataset, points that fall outside every urban area are matched to the
// nearest city within the configured distance.
//
// Natural Earth has no second-level administrative regions, so Admin2 is
// never set.
type RGeo struct {
	// s2 queries keep iterator state and are not safe for concurrent use.
	mu     sync.Mutex
	r      *rgeo.Rgeo
	cities *cityIndex
}

// NewRGeo loads the polygons for dataset. Larger datasets resolve more
// detail but take longer to load and use more memory. maxDistanceKm limits
// the nearest-city fallback; zero or less means unlimited.
func NewRGeo(dataset string, maxDistanceKm float64) (*RGeo, error) {
	var sets []func() []byte
	withCities := false
	switch strings.ToLower(strings.TrimSpace(dataset)) {
	case DatasetCountries:
		sets = append(sets, rgeo.Countries110)
	case DatasetProvinces:
		sets = append(sets, rgeo.Countries10, rgeo.Provinces10)
	case DatasetCities, "":
		sets = append(sets, rgeo.Countries10, rgeo.Provinces10, rgeo.Cities10)
		withCities = true
	default:
		return nil, fmt.Errorf("unknown geocoder dataset %q (want countries, provinces or cities)", dataset)
	}

	start := time.Now()
	r, err := rgeo.New(sets...)
	if err != nil {
		return nil, fmt.Errorf("failed to load geocoder dataset %q: %w", dataset, err)
	}

	g := &RGeo{r: r}
	if withCities {
		g.cities, err = newCityIndex(rgeo.Cities10(), maxDistanceKm)
		if err != nil {
			return nil, fmt.Errorf("failed to build city index: %w", err)
		}
	}
	logging.Info("Loaded geocoder dataset %q in %v", dataset, time.Since(start).Round(time.Millisecond))

	return g, nil
}

// Lookup implements Backend.
func (g *RGeo) Lookup(lat, lon float64) (Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	loc, found, err := g.reverse(lat, lon)
	if err != nil {
		return Place{}, err
	}

	if loc.City == "" && g.cities != nil {
		if c, ok := g.cities.nearest(lat, lon); ok {
			loc, found = g.withNearestCity(loc, found, c)
		}
	}

	if !found {
		return Place{}, ErrNoMatch
	}

	return Place{
		CountryCode: countryCode(loc),
		CountryName: loc.Country,
		City:        loc.City,
		Admin1:      loc.Province,
	}, nil
}

func (g *RGeo) reverse(lat, lon float64) (rgeo.Location, bool, error) {
	loc, err := g.r.ReverseGeocode(geom.Coord{lon, lat})
	if errors.Is(err, rgeo.ErrLocationNotFound) {
		return rgeo.Location{}, false, nil
	}
	if err != nil {
		return rgeo.Location{}, false, err
	}
	return loc, true, nil
}

// withNearestCity merges city c into loc. A point outside every polygon,
// such as one just offshore, takes its country and province from the city
// itself. Otherwise the city is only used when it lies in the same country.
func (g *RGeo) withNearestCity(loc rgeo.Location, found bool, c city) (rgeo.Location, bool) {
	at, ok, err := g.reverse(c.lat, c.lon)
	if err != nil {
		ok = false
	}

	if !found {
		if ok {
			loc = at
		}
		loc.City = c.name
		return loc, true
	}

	if ok && countryCode(at) == countryCode(loc) {
		loc.City = c.name
	}
	return loc, found
}

// countryCode picks a usable ISO 3166-1 alpha-2 code. Natural Earth marks
// some countries (France, Norway) with "-99" in both code fields, so the
// ISO 3166-2 province code and then the country name are tried as well.
func countryCode(loc rgeo.Location) string {
	if code := alpha2(loc.CountryCode2, loc.CountryCode3); code != "" {
		return code
	}
	if prefix, _, ok := strings.Cut(loc.ProvinceCode, "-"); ok {
		if code := alpha2(prefix, ""); code != "" {
			return code
		}
	}
	return regionByName(loc.Country)
}

func alpha2(code2, code3 string) string {
	if r, err := language.ParseRegion(code2); err == nil && len(code2) == 2 && r.IsCountry() {
		return r.String()
	}
	if r, err := language.ParseRegion(code3); err == nil && len(code3) == 3 && r.IsCountry() {
		return r.String()
	}
	return ""
}
