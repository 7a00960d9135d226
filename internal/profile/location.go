package profile

import (
	"math"
	"strings"
)

const earthRadiusKm = 6371.0

// Location is a geographic place. Coordinates are optional.
type Location struct {
	City    string   `json:"city,omitempty" yaml:"city"`
	Country string   `json:"country,omitempty" yaml:"country"`
	Lat     *float64 `json:"lat,omitempty" yaml:"lat"`
	Lon     *float64 `json:"lon,omitempty" yaml:"lon"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Known reports whether the location carries any usable information.
func (l Location) Known() bool {
	if l.HasCoordinates() {
		return true
	}
	city := strings.ToLower(strings.TrimSpace(l.City))
	return city != "" && city != "unknown"
}

// DistanceKm returns the distance between two locations and whether it could be determined.
// Without coordinates only an exact city match (distance 0) is recognised.
func (l Location) DistanceKm(other Location) (float64, bool) {
	if l.HasCoordinates() && other.HasCoordinates() {
		return haversine(*l.Lat, *l.Lon, *other.Lat, *other.Lon), true
	}
	if !l.Known() || !other.Known() {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(l.City), strings.TrimSpace(other.City)) &&
		(l.Country == "" || other.Country == "" || strings.EqualFold(l.Country, other.Country)) {
		return 0, true
	}
	return 0, false
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
