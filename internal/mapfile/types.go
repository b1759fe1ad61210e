package mapfile

import "math"

const (
	// LongitudeMax is the largest valid WGS84 longitude in degrees.
	LongitudeMax = 180.0
	// LongitudeMin is the smallest valid WGS84 longitude in degrees.
	LongitudeMin = -180.0
	// conversionFactor converts between degrees and the on-disk
	// micro-degree integer representation.
	conversionFactor = 1000000.0
	// dateLineEpsilon is the tolerance used to snap a longitude to the
	// antimeridian when a delta-decoded value lands just past it.
	dateLineEpsilon = 0.001
)

// Tag is an immutable (key, value) pair resolved against a per-file
// dictionary, or constructed synthetically during block decode (name,
// addr:housenumber, ele, ref).
type Tag struct {
	Key   string
	Value string
}

// NewTag builds a Tag from an explicit key and value.
func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// microdegreesToDegrees converts an on-disk micro-degree integer to degrees.
func microdegreesToDegrees(v int32) float64 {
	return float64(v) / conversionFactor
}

// degreesToMicrodegrees converts degrees to the on-disk micro-degree
// integer representation, rounding to the nearest integer.
func degreesToMicrodegrees(v float64) int32 {
	return int32(math.Round(v * conversionFactor))
}

// snapToDateLine snaps a longitude within dateLineEpsilon of +-180 to the
// exact limit, reproducing the wire-level international date-line
// correction that delta-decoded geometry relies on.
func snapToDateLine(lon float64) float64 {
	if lon < LongitudeMin && math.Abs(LongitudeMin-lon) < dateLineEpsilon {
		return LongitudeMin
	}
	if lon > LongitudeMax && math.Abs(lon-LongitudeMax) < dateLineEpsilon {
		return LongitudeMax
	}
	return lon
}

// LatLong is a WGS84 coordinate pair in degrees.
type LatLong struct {
	Latitude  float64
	Longitude float64
}

// NewLatLong constructs a LatLong without clamping; callers that read
// coordinates off the wire are responsible for applying the date-line snap.
func NewLatLong(lat, lon float64) LatLong {
	return LatLong{Latitude: lat, Longitude: lon}
}

// BoundingBox is a closed rectangle in WGS84 degrees with min <= max on
// each axis.
type BoundingBox struct {
	MinLatitude  float64
	MinLongitude float64
	MaxLatitude  float64
	MaxLongitude float64
}

// NewBoundingBox validates and constructs a BoundingBox.
func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) (BoundingBox, error) {
	if minLat > maxLat {
		return BoundingBox{}, &ErrMalformedHeader{Field: "bounding_box.latitude", Value: []float64{minLat, maxLat}}
	}
	if minLon > maxLon {
		return BoundingBox{}, &ErrMalformedHeader{Field: "bounding_box.longitude", Value: []float64{minLon, maxLon}}
	}
	return BoundingBox{MinLatitude: minLat, MinLongitude: minLon, MaxLatitude: maxLat, MaxLongitude: maxLon}, nil
}

// CenterPoint returns the geometric center of the box.
func (b BoundingBox) CenterPoint() LatLong {
	return LatLong{
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
	}
}

// Contains reports whether (lat, lon) lies within the closed box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude &&
		lon >= b.MinLongitude && lon <= b.MaxLongitude
}

// Intersects reports whether b and other overlap.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.MinLatitude <= other.MaxLatitude && b.MaxLatitude >= other.MinLatitude &&
		b.MinLongitude <= other.MaxLongitude && b.MaxLongitude >= other.MinLongitude
}

// metersPerDegree is the flat-earth approximation used by ExtendMeters; it
// is not accurate near the poles but matches the wire-level writer's own
// approximation closely enough for way filtering.
const metersPerDegree = 111000.0

// ExtendMeters returns a new box expanded by d meters on every side, using a
// flat 111000 m-per-degree approximation (shared on both axes).
func (b BoundingBox) ExtendMeters(d float64) BoundingBox {
	delta := d / metersPerDegree
	return BoundingBox{
		MinLatitude:  b.MinLatitude - delta,
		MinLongitude: b.MinLongitude - delta,
		MaxLatitude:  b.MaxLatitude + delta,
		MaxLongitude: b.MaxLongitude + delta,
	}
}
