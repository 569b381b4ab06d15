package geocode

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// DefaultCacheSize is the number of coordinate pairs memoized by default.
const DefaultCacheSize = 10000

// ErrNoMatch is returned by a Backend when it cannot place the point.
var ErrNoMatch = errors.New("no matching location")

// Location is a resolved place. Empty fields are unknown; the zero value
// means the coordinates did not resolve.
type Location struct {
	CountryCode string
	CountryName string
	City        string
	Admin1      string
	Admin2      string
}

// IsZero reports whether l carries no place information.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Place is a raw backend result before normalization.
type Place struct {
	CountryCode string
	CountryName string
	City        string
	Admin1      string
	Admin2      string
}

// Backend performs the actual coordinate lookup.
type Backend interface {
	Lookup(lat, lon float64) (Place, error)
}

// GeoResolver resolves coordinates to a Location.
type GeoResolver interface {
	Resolve(lat, lon float64) Location
}

// ValidCoordinate reports whether lat/lon is a finite point on the globe.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Resolver is the GeoResolver used by the indexer. It is safe for
// concurrent use.
type Resolver struct {
	backend Backend

	mu    sync.Mutex
	cache *lru.Cache
}

type coordKey struct {
	lat, lon float64
}

// NewResolver wraps backend with validation and an LRU of cacheSize
// entries. A cacheSize of zero or less selects DefaultCacheSize.
func NewResolver(backend Backend, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Resolver{
		backend: backend,
		cache:   lru.New(cacheSize),
	}
}

// Resolve implements GeoResolver.
func (r *Resolver) Resolve(lat, lon float64) Location {
	if !ValidCoordinate(lat, lon) {
		metrics.GeocodeLookups.WithLabelValues("invalid").Inc()
		logging.Debug("Ignoring invalid coordinates (%v, %v)", lat, lon)
		return Location{}
	}

	key := coordKey{lat, lon}

	r.mu.Lock()
	if v, ok := r.cache.Get(key); ok {
		r.mu.Unlock()
		metrics.GeocodeCacheHits.Inc()
		return v.(Location)
	}
	r.mu.Unlock()

	place, err := r.lookup(lat, lon)
	switch {
	case errors.Is(err, ErrNoMatch):
		metrics.GeocodeLookups.WithLabelValues("no_match").Inc()
	case err != nil:
		// Errors are not cached so a transient failure can be retried.
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		logging.Debug("Reverse geocode failed for (%v, %v): %v", lat, lon, err)
		return Location{}
	default:
		metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
	}

	loc := normalize(place)

	r.mu.Lock()
	r.cache.Add(key, loc)
	r.mu.Unlock()

	return loc
}

// CacheLen returns the number of memoized coordinate pairs.
func (r *Resolver) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

func (r *Resolver) lookup(lat, lon float64) (p Place, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("geocode backend panic: %v", rec)
		}
	}()
	return r.backend.Lookup(lat, lon)
}

func normalize(p Place) Location {
	code := strings.ToUpper(strings.TrimSpace(p.CountryCode))
	loc := Location{
		CountryCode: code,
		CountryName: CountryName(code, strings.TrimSpace(p.CountryName)),
		City:        strings.TrimSpace(p.City),
		Admin1:      strings.TrimSpace(p.Admin1),
		Admin2:      strings.TrimSpace(p.Admin2),
	}
	return loc
}

// CountryName returns the English display name for an ISO 3166 country
// code, falling back to fallback and then to the code itself.
func CountryName(code, fallback string) string {
	if region, err := language.ParseRegion(code); err == nil && region.IsCountry() {
		if name := display.English.Regions().Name(region); name != "" {
			return name
		}
	}
	if fallback != "" {
		return fallback
	}
	return code
}

var (
	regionNamesOnce sync.Once
	regionNames     map[string]string
)

// regionByName maps an English country name back to its ISO 3166-1
// alpha-2 code, or "" when the name is not a known country.
func regionByName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	regionNamesOnce.Do(func() {
		regionNames = make(map[string]string)
		namer := display.English.Regions()
		for a := 'A'; a <= 'Z'; a++ {
			for b := 'A'; b <= 'Z'; b++ {
				region, err := language.ParseRegion(string([]rune{a, b}))
				if err != nil || !region.IsCountry() {
					continue
				}
				if n := namer.Name(region); n != "" {
					regionNames[strings.ToLower(n)] = region.String()
				}
			}
		}
	})

	return regionNames[name]
}

// Disabled is a GeoResolver that never resolves anything.
type Disabled struct{}

// Resolve implements GeoResolver.
func (Disabled) Resolve(float64, float64) Location { return Location{} }
