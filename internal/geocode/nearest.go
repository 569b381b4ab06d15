package geocode

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const earthRadiusKm = 6371.0088

type city struct {
	name     string
	lat, lon float64
}

// cityIndex answers nearest-city queries over the centroids of the Natural
// Earth urban areas. Not safe for concurrent use.
type cityIndex struct {
	cities []city
	points s2.PointVector
	query  *s2.EdgeQuery
}

// newCityIndex builds the index from a gzipped GeoJSON feature collection
// in the rgeo dataset format. Features without a name or centroid are
// skipped.
func newCityIndex(data []byte, maxDistanceKm float64) (*cityIndex, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid city dataset: %w", err)
	}
	defer zr.Close()

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(zr).Decode(&fc); err != nil {
		return nil, fmt.Errorf("invalid city dataset: %w", err)
	}

	idx := &cityIndex{}
	for _, f := range fc.Features {
		name, _ := f.Properties["name_conve"].(string)
		name = strings.TrimSpace(strings.TrimSuffix(name, "2"))
		lat, okLat := f.Properties["mean_bb_yc"].(float64)
		lon, okLon := f.Properties["mean_bb_xc"].(float64)
		if name == "" || !okLat || !okLon || !ValidCoordinate(lat, lon) {
			continue
		}
		idx.add(city{name: name, lat: lat, lon: lon})
	}
	if len(idx.cities) == 0 {
		return nil, fmt.Errorf("invalid city dataset: no usable features")
	}

	idx.build(maxDistanceKm)
	return idx, nil
}

func (c *cityIndex) add(ct city) {
	c.cities = append(c.cities, ct)
	c.points = append(c.points, pointOf(ct.lat, ct.lon))
}

func (c *cityIndex) build(maxDistanceKm float64) {
	index := s2.NewShapeIndex()
	index.Add(&c.points)

	opts := s2.NewClosestEdgeQueryOptions().MaxResults(1)
	if maxDistanceKm > 0 {
		opts = opts.DistanceLimit(s1.ChordAngleFromAngle(s1.Angle(maxDistanceKm / earthRadiusKm)))
	}
	c.query = s2.NewClosestEdgeQuery(index, opts)
}

// nearest returns the closest city to lat/lon, if one lies within the
// distance limit.
func (c *cityIndex) nearest(lat, lon float64) (city, bool) {
	target := s2.NewMinDistanceToPointTarget(pointOf(lat, lon))
	for _, res := range c.query.FindEdges(target) {
		// The index holds a single PointVector whose edge IDs are the
		// point positions.
		if res.IsEmpty() || res.EdgeID() < 0 || int(res.EdgeID()) >= len(c.cities) {
			continue
		}
		return c.cities[res.EdgeID()], true
	}
	return city{}, false
}

func pointOf(lat, lon float64) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
}
