package mapfile

// queryParameters is the fully resolved plan for a single read: which
// sub-file to read from and the inclusive block rectangle to walk, plus the
// child-tile bitmask used, when the query zoom is finer than the base zoom,
// to skip ways that touch none of the requested child tiles.
type queryParameters struct {
	queryZoomLevel        uint8
	subFileParameter       *SubFileParameter
	fromBlockX, fromBlockY int64
	toBlockX, toBlockY     int64
	useTileBitmask         bool
	queryTileBitmask       uint16
}

// calculateBaseTiles resolves the query tile rectangle against a sub-file's
// own base zoom level. Three cases arise depending on how the requested
// zoom level compares to the sub-file's base zoom level:
//
//	A) queryZoomLevel == baseZoomLevel: tiles map 1:1 onto blocks.
//	B) queryZoomLevel  > baseZoomLevel: several query tiles share one block;
//	   a bitmask ORed over every requested tile selects those children.
//	C) queryZoomLevel  < baseZoomLevel: one query tile covers many blocks.
func calculateBaseTiles(upperLeft, lowerRight Tile, sub *SubFileParameter) queryParameters {
	q := queryParameters{subFileParameter: sub}

	if sub.BaseZoomLevel == upperLeft.ZoomLevel {
		q.fromBlockX = clampBlockX(upperLeft.TileX-sub.BoundaryTileLeft, sub)
		q.fromBlockY = clampBlockY(upperLeft.TileY-sub.BoundaryTileTop, sub)
		q.toBlockX = clampBlockX(lowerRight.TileX-sub.BoundaryTileLeft, sub)
		q.toBlockY = clampBlockY(lowerRight.TileY-sub.BoundaryTileTop, sub)
		return q
	}

	if sub.BaseZoomLevel > upperLeft.ZoomLevel {
		zoomLevelDifference := sub.BaseZoomLevel - upperLeft.ZoomLevel
		minX := upperLeft.TileX << zoomLevelDifference
		maxX := (lowerRight.TileX << zoomLevelDifference) + (1 << zoomLevelDifference) - 1
		minY := upperLeft.TileY << zoomLevelDifference
		maxY := (lowerRight.TileY << zoomLevelDifference) + (1 << zoomLevelDifference) - 1

		q.fromBlockX = clampBlockX(minX-sub.BoundaryTileLeft, sub)
		q.fromBlockY = clampBlockY(minY-sub.BoundaryTileTop, sub)
		q.toBlockX = clampBlockX(maxX-sub.BoundaryTileLeft, sub)
		q.toBlockY = clampBlockY(maxY-sub.BoundaryTileTop, sub)
		return q
	}

	zoomLevelDifference := upperLeft.ZoomLevel - sub.BaseZoomLevel
	q.fromBlockX = clampBlockX((upperLeft.TileX>>zoomLevelDifference)-sub.BoundaryTileLeft, sub)
	q.fromBlockY = clampBlockY((upperLeft.TileY>>zoomLevelDifference)-sub.BoundaryTileTop, sub)
	q.toBlockX = clampBlockX((lowerRight.TileX>>zoomLevelDifference)-sub.BoundaryTileLeft, sub)
	q.toBlockY = clampBlockY((lowerRight.TileY>>zoomLevelDifference)-sub.BoundaryTileTop, sub)

	q.useTileBitmask = zoomLevelDifference > 0
	if q.useTileBitmask {
		q.queryTileBitmask = calculateTileBitmaskRange(upperLeft, lowerRight, zoomLevelDifference)
	}
	return q
}

func clampBlockX(x int64, sub *SubFileParameter) int64 {
	if x < 0 {
		return 0
	}
	if x >= sub.BlocksWidth {
		return sub.BlocksWidth - 1
	}
	return x
}

func clampBlockY(y int64, sub *SubFileParameter) int64 {
	if y < 0 {
		return 0
	}
	if y >= sub.BlocksHeight {
		return sub.BlocksHeight - 1
	}
	return y
}

// calculateTileBitmaskRange ORs the per-tile bitmask of every tile in
// [upperLeft, lowerRight] at the given zoomLevelDifference relative to the
// enclosing block's base zoom.
func calculateTileBitmaskRange(upperLeft, lowerRight Tile, zoomLevelDifference uint8) uint16 {
	if upperLeft.TileX == lowerRight.TileX && upperLeft.TileY == lowerRight.TileY {
		return calculateTileBitmask(upperLeft, zoomLevelDifference)
	}
	var mask uint16
	for x := upperLeft.TileX; x <= lowerRight.TileX; x++ {
		for y := upperLeft.TileY; y <= lowerRight.TileY; y++ {
			mask |= calculateTileBitmask(Tile{TileX: x, TileY: y, ZoomLevel: upperLeft.ZoomLevel}, zoomLevelDifference)
		}
	}
	return mask
}

// calculateTileBitmask returns the 16-bit mask selecting tile within its
// enclosing block at zoomLevelDifference levels below the block's base
// zoom. These constants are the wire contract for the tile bitmask field of
// each way record and must match the reference implementation bit for bit.
func calculateTileBitmask(tile Tile, zoomLevelDifference uint8) uint16 {
	if zoomLevelDifference == 1 {
		return firstLevelTileBitmask(tile)
	}

	subtileX := tile.TileX >> (zoomLevelDifference - 2)
	subtileY := tile.TileY >> (zoomLevelDifference - 2)
	parentTileX := subtileX >> 1
	parentTileY := subtileY >> 1

	switch {
	case parentTileX%2 == 0 && parentTileY%2 == 0:
		return secondLevelTileBitmaskUpperLeft(subtileX, subtileY)
	case parentTileX%2 != 0 && parentTileY%2 == 0:
		return secondLevelTileBitmaskUpperRight(subtileX, subtileY)
	case parentTileX%2 == 0 && parentTileY%2 != 0:
		return secondLevelTileBitmaskLowerLeft(subtileX, subtileY)
	default:
		return secondLevelTileBitmaskLowerRight(subtileX, subtileY)
	}
}

func firstLevelTileBitmask(tile Tile) uint16 {
	switch {
	case tile.TileX%2 == 0 && tile.TileY%2 == 0:
		return 0xcc00
	case tile.TileX%2 != 0 && tile.TileY%2 == 0:
		return 0x3300
	case tile.TileX%2 == 0 && tile.TileY%2 != 0:
		return 0xcc
	default:
		return 0x33
	}
}

func secondLevelTileBitmaskLowerLeft(subtileX, subtileY int64) uint16 {
	switch {
	case subtileX%2 == 0 && subtileY%2 == 0:
		return 0x80
	case subtileX%2 != 0 && subtileY%2 == 0:
		return 0x40
	case subtileX%2 == 0 && subtileY%2 != 0:
		return 0x8
	default:
		return 0x4
	}
}

func secondLevelTileBitmaskLowerRight(subtileX, subtileY int64) uint16 {
	switch {
	case subtileX%2 == 0 && subtileY%2 == 0:
		return 0x20
	case subtileX%2 != 0 && subtileY%2 == 0:
		return 0x10
	case subtileX%2 == 0 && subtileY%2 != 0:
		return 0x2
	default:
		return 0x1
	}
}

func secondLevelTileBitmaskUpperLeft(subtileX, subtileY int64) uint16 {
	switch {
	case subtileX%2 == 0 && subtileY%2 == 0:
		return 0x8000
	case subtileX%2 != 0 && subtileY%2 == 0:
		return 0x4000
	case subtileX%2 == 0 && subtileY%2 != 0:
		return 0x800
	default:
		return 0x400
	}
}

func secondLevelTileBitmaskUpperRight(subtileX, subtileY int64) uint16 {
	switch {
	case subtileX%2 == 0 && subtileY%2 == 0:
		return 0x2000
	case subtileX%2 != 0 && subtileY%2 == 0:
		return 0x1000
	case subtileX%2 == 0 && subtileY%2 != 0:
		return 0x200
	default:
		return 0x100
	}
}
