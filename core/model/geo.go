package model

import "math"

const earthRadiusM = 6371000.0

// Position is a WGS84 coordinate in degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within geographic bounds.
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Haversine returns the great-circle distance between two positions in meters.
func Haversine(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}

// LocalFrame is an equirectangular projection anchored at Origin. Positions
// near the origin map to planar x/y meters (x east, y north), which is where
// the planner and coverage geometry operate.
type LocalFrame struct {
	Origin Position
	cosLat float64
}

// NewLocalFrame creates a frame anchored at the given origin.
func NewLocalFrame(origin Position) LocalFrame {
	return LocalFrame{Origin: origin, cosLat: math.Cos(origin.Lat * math.Pi / 180)}
}

// ToXY projects a position into frame-local meters.
func (f LocalFrame) ToXY(p Position) (x, y float64) {
	x = (p.Lon - f.Origin.Lon) * math.Pi / 180 * earthRadiusM * f.cosLat
	y = (p.Lat - f.Origin.Lat) * math.Pi / 180 * earthRadiusM
	return x, y
}

// FromXY converts frame-local meters back to a position.
func (f LocalFrame) FromXY(x, y float64) Position {
	return Position{
		Lat: f.Origin.Lat + y/earthRadiusM*180/math.Pi,
		Lon: f.Origin.Lon + x/(earthRadiusM*f.cosLat)*180/math.Pi,
	}
}

// Waypoint is a single point of a mission route. Heading and altitude are
// optional; zero values mean unspecified.
type Waypoint struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	HeadingDeg float64 `json:"heading_deg,omitempty"`
	AltM       float64 `json:"alt_m,omitempty"`
}

// Position returns the waypoint location.
func (w Waypoint) Position() Position { return Position{Lat: w.Lat, Lon: w.Lon} }

// Polygon is a closed ring of vertices. The closing edge from the last vertex
// back to the first is implicit.
type Polygon []Position

// Centroid returns the vertex-average center of the polygon.
func (pg Polygon) Centroid() Position {
	if len(pg) == 0 {
		return Position{}
	}
	var lat, lon float64
	for _, p := range pg {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(pg))
	return Position{Lat: lat / n, Lon: lon / n}
}

// BoundRadiusM returns the distance from the centroid to the farthest vertex.
func (pg Polygon) BoundRadiusM() float64 {
	c := pg.Centroid()
	var r float64
	for _, p := range pg {
		if d := Haversine(c, p); d > r {
			r = d
		}
	}
	return r
}
