package mapfile

import "math"

// Spherical Mercator constants for the tile scheme used by the mapsforge
// format. TileSize is fixed at 256 by convention; LatitudeMax/Min bound the
// projectable latitude range.
const (
	TileSize    = 256
	LatitudeMax = 85.05112877980659
	LatitudeMin = -LatitudeMax
)

// These formulas are part of the wire contract: the header stores boundary
// tiles derived from them, so they must match bit-for-bit at ordinary
// inputs (ulps allowed near the poles and at the longitude wrap).

// longitudeToTileX returns the tile column containing lon at zoom z.
func longitudeToTileX(lon float64, z uint8) int64 {
	n := float64(int64(1) << z)
	return int64(math.Floor((lon + 180.0) / 360.0 * n))
}

// latitudeToTileY returns the tile row containing lat at zoom z, clamping
// lat to [LatitudeMin, LatitudeMax] first and the result to [0, n-1].
func latitudeToTileY(lat float64, z uint8) int64 {
	if lat < LatitudeMin {
		lat = LatitudeMin
	} else if lat > LatitudeMax {
		lat = LatitudeMax
	}
	n := float64(int64(1) << z)
	latRad := lat * math.Pi / 180.0
	y := 0.5 - math.Atanh(math.Sin(latRad))/(2*math.Pi)
	tileY := int64(math.Floor(y * n))
	if tileY < 0 {
		tileY = 0
	}
	maxY := int64(n) - 1
	if tileY > maxY {
		tileY = maxY
	}
	return tileY
}

// tileXToLongitude returns the longitude of the western edge of tile column
// x at zoom z.
func tileXToLongitude(x int64, z uint8) float64 {
	n := float64(int64(1) << z)
	return float64(x)*360.0/n - 180.0
}

// tileYToLatitude returns the latitude of the northern edge of tile row y at
// zoom z.
func tileYToLatitude(y int64, z uint8) float64 {
	n := float64(int64(1) << z)
	return 90.0 - 360.0/math.Pi*math.Atan(math.Exp(-(0.5-float64(y)/n)*2*math.Pi))
}

// mapSize returns the total map size in pixels at zoom z: TileSize << z.
func mapSize(z uint8) int64 {
	return int64(TileSize) << z
}
