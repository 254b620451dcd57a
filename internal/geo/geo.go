// Package geo handles model geo-referencing: site origins given as WGS84
// longitude/latitude are projected to EPSG:3857 so models can be placed
// against web map tiles and measured in meters.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Origin is a model site origin: the WGS84 input and its EPSG:3857
// projection.
type Origin struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Elevation float64 `json:"elevation,omitempty"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParseOrigin parses "longitude,latitude" or "longitude,latitude,elevation"
// into a projected site origin.
func ParseOrigin(coords string) (Origin, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Origin{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Origin{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Origin{}, ErrInvalidCoordinates
	}
	var elev float64
	if len(parts) > 2 {
		if elev, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err != nil {
			return Origin{}, ErrInvalidCoordinates
		}
	}
	return NewOrigin(long, lat, elev), nil
}

// NewOrigin projects a WGS84 position into an Origin.
func NewOrigin(longitude, latitude, elevation float64) Origin {
	x, y := Mercator(longitude, latitude)
	return Origin{
		Longitude: longitude,
		Latitude:  latitude,
		Elevation: elevation,
		X:         x,
		Y:         y,
	}
}

// Mercator projects WGS84 longitude/latitude to EPSG:3857.
func Mercator(longitude, latitude float64) (x, y float64) {
	epsg := wgs84.EPSG()
	transform := epsg.Transform(4326, 3857)
	x, y, _ = transform(longitude, latitude, 0)
	return x, y
}

// Point returns the origin as a 3857 point carrying the elevation.
func (o Origin) Point() geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: o.X, Y: o.Y},
		Z:    o.Elevation,
		Type: geom.DimXYZ,
	})
}

// Offset returns the projected meters from the origin to another WGS84
// position, east and north positive.
func (o Origin) Offset(longitude, latitude float64) (dx, dy float64) {
	x, y := Mercator(longitude, latitude)
	return x - o.X, y - o.Y
}
