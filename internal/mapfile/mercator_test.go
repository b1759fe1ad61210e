package mapfile

import "testing"

func TestTileRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		zoom uint8
	}{
		{"origin", 0, 0, 10},
		{"near pole clamp", 89, 10, 5},
		{"negative pole clamp", -89, -10, 5},
		{"high zoom", 48.8566, 2.3522, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := longitudeToTileX(tt.lon, tt.zoom)
			y := latitudeToTileY(tt.lat, tt.zoom)

			n := int64(1) << tt.zoom
			if x < 0 || x >= n {
				t.Errorf("tile x %d out of range [0, %d)", x, n)
			}
			if y < 0 || y >= n {
				t.Errorf("tile y %d out of range [0, %d)", y, n)
			}

			lon2 := tileXToLongitude(x, tt.zoom)
			if lon2 > tt.lon+1 || lon2 < tt.lon-360 {
				t.Errorf("tileXToLongitude(%d) = %f, not plausible for input lon %f", x, lon2, tt.lon)
			}
		})
	}
}

func TestLatitudeClamping(t *testing.T) {
	y1 := latitudeToTileY(90, 10)
	y2 := latitudeToTileY(LatitudeMax, 10)
	if y1 != y2 {
		t.Errorf("expected latitude above LatitudeMax to clamp: got %d and %d", y1, y2)
	}
}

func TestMapSize(t *testing.T) {
	if got := mapSize(0); got != TileSize {
		t.Errorf("mapSize(0) = %d, want %d", got, TileSize)
	}
	if got := mapSize(1); got != TileSize*2 {
		t.Errorf("mapSize(1) = %d, want %d", got, TileSize*2)
	}
}
