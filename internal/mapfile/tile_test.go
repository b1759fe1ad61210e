package mapfile

import "testing"

func TestTileBoundingBox(t *testing.T) {
	tile := NewTile(0, 0, 1, 256)
	box := tile.BoundingBox()
	if box.MinLongitude != -180 {
		t.Errorf("MinLongitude = %f, want -180", box.MinLongitude)
	}
	if box.MaxLatitude <= 0 {
		t.Errorf("MaxLatitude = %f, want > 0 for the northwest tile", box.MaxLatitude)
	}
}

func TestTileBoundingBoxRangeSwapsInverted(t *testing.T) {
	ul := NewTile(5, 5, 10, 256)
	lr := NewTile(2, 2, 10, 256)

	rangeBox := tileBoundingBoxRange(ul, lr)
	normalBox := tileBoundingBoxRange(lr, ul)

	if rangeBox != normalBox {
		t.Errorf("tileBoundingBoxRange should be symmetric under swapped corners: got %+v vs %+v", rangeBox, normalBox)
	}
}

func TestTileBoundingBoxRangeSingleTile(t *testing.T) {
	tile := NewTile(3, 3, 10, 256)
	single := tileBoundingBoxRange(tile, tile)
	direct := tile.BoundingBox()
	if single != direct {
		t.Errorf("range over a single tile should equal its own bounding box: got %+v, want %+v", single, direct)
	}
}
