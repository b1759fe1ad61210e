package mapfile

// Tile identifies a square in the standard slippy-map scheme by its column,
// row, zoom level, and the pixel size its tile images are rendered at.
type Tile struct {
	TileX         int64
	TileY         int64
	ZoomLevel     uint8
	TilePixelSize int32
}

// NewTile constructs a Tile.
func NewTile(x, y int64, zoom uint8, pixelSize int32) Tile {
	return Tile{TileX: x, TileY: y, ZoomLevel: zoom, TilePixelSize: pixelSize}
}

// BoundingBox returns the WGS84 rectangle covered by the tile.
func (t Tile) BoundingBox() BoundingBox {
	minLon := tileXToLongitude(t.TileX, t.ZoomLevel)
	maxLon := tileXToLongitude(t.TileX+1, t.ZoomLevel)
	minLat := tileYToLatitude(t.TileY+1, t.ZoomLevel)
	maxLat := tileYToLatitude(t.TileY, t.ZoomLevel)
	return BoundingBox{MinLatitude: minLat, MinLongitude: minLon, MaxLatitude: maxLat, MaxLongitude: maxLon}
}

// tileBoundingBoxRange returns the WGS84 rectangle spanning every tile from
// upperLeft through lowerRight inclusive, both assumed at the same zoom.
func tileBoundingBoxRange(upperLeft, lowerRight Tile) BoundingBox {
	minX := upperLeft.TileX
	maxX := lowerRight.TileX
	if maxX < minX {
		minX, maxX = maxX, minX
	}
	minY := upperLeft.TileY
	maxY := lowerRight.TileY
	if maxY < minY {
		minY, maxY = maxY, minY
	}
	ul := Tile{TileX: minX, TileY: minY, ZoomLevel: upperLeft.ZoomLevel}
	lr := Tile{TileX: maxX, TileY: maxY, ZoomLevel: upperLeft.ZoomLevel}
	ulBox := ul.BoundingBox()
	lrBox := lr.BoundingBox()
	return BoundingBox{
		MinLatitude:  lrBox.MinLatitude,
		MinLongitude: ulBox.MinLongitude,
		MaxLatitude:  ulBox.MaxLatitude,
		MaxLongitude: lrBox.MaxLongitude,
	}
}
