package mapfile

import "strconv"

// Selector controls which categories of map data a read returns.
type Selector int

const (
	// SelectorAll returns every POI and way in range.
	SelectorAll Selector = iota
	// SelectorPois returns POIs only; way data is skipped entirely.
	SelectorPois
	// SelectorNamed returns every POI in range, but only those ways carrying
	// a name, house number, or reference tag.
	SelectorNamed
)

// WayFilter bounds how aggressively processWays discards geometry that
// cannot possibly intersect the query: an immutable per-read configuration
// rather than the reference implementation's mutable process-wide toggle,
// so concurrent reads with different filter settings never interfere.
type WayFilter struct {
	Enabled  bool
	Distance float64
}

// DefaultWayFilter matches the reference implementation's built-in default.
func DefaultWayFilter() WayFilter {
	return WayFilter{Enabled: true, Distance: 20}
}

const (
	poiFeatureElevation    = 0x20
	poiFeatureHouseNumber  = 0x40
	poiFeatureName         = 0x80
	poiLayerBitmask        = 0xf0
	poiLayerShift          = 4
	poiNumberOfTagsBitmask = 0x0f

	wayFeatureDataBlocksByte        = 0x08
	wayFeatureDoubleDeltaEncoding   = 0x04
	wayFeatureHouseNumber           = 0x40
	wayFeatureLabelPosition         = 0x10
	wayFeatureName                  = 0x80
	wayFeatureRef                   = 0x20
	wayLayerBitmask                 = 0xf0
	wayLayerShift                   = 4
	wayNumberOfTagsBitmask          = 0x0f

	signatureLengthBlock = 32
	signatureLengthPoi   = 32
	signatureLengthWay   = 32

	tagKeyElevation    = "ele"
	tagKeyHouseNumber  = "addr:housenumber"
	tagKeyName         = "name"
	tagKeyRef          = "ref"
)

// PointOfInterest is one decoded POI record.
type PointOfInterest struct {
	Layer    int8
	Tags     []Tag
	Position LatLong
}

// Way is one decoded way record: a layer, its tags, one or more node rings
// (the first is the outer ring; any further rings are inner rings for a
// multi-polygon), and an optional label placement point.
type Way struct {
	Layer         int8
	Tags          []Tag
	WayNodes      [][]LatLong
	LabelPosition *LatLong
}

// PoiWayBundle groups the POIs and ways decoded from a single block.
type PoiWayBundle struct {
	Pois []PointOfInterest
	Ways []Way
}

// MapReadResult accumulates decoded bundles across every block visited by a
// read, plus whether every visited block was flagged water-only.
type MapReadResult struct {
	Bundles []PoiWayBundle
	IsWater bool
}

func (m *MapReadResult) add(b PoiWayBundle) {
	m.Bundles = append(m.Bundles, b)
}

// blockDecoder decodes the POI and way records of a single block, given the
// file's tag dictionaries and the active selector/filter/debug settings.
type blockDecoder struct {
	poiTags   []Tag
	wayTags   []Tag
	debugFile bool
	selector  Selector
	wayFilter WayFilter
}

func (d *blockDecoder) decode(r *readBuffer, sub *SubFileParameter, queryZoomLevel uint8, tile Tile, readBbox BoundingBox, tileBitmask uint16, useBitmask bool) (PoiWayBundle, error) {
	if d.debugFile {
		if err := d.checkSignature(r, signatureLengthBlock, "block-signature-"); err != nil {
			return PoiWayBundle{}, err
		}
	}

	rows := int(sub.ZoomLevelMax-sub.ZoomLevelMin) + 1
	zoomTable, err := readZoomTableRows(r, rows)
	if err != nil {
		return PoiWayBundle{}, err
	}
	rowIndex := int(queryZoomLevel) - int(sub.ZoomLevelMin)
	if rowIndex < 0 || rowIndex >= len(zoomTable) {
		rowIndex = len(zoomTable) - 1
	}
	row := zoomTable[rowIndex]

	firstWayOffset, err := r.readUnsignedInt()
	if err != nil {
		return PoiWayBundle{}, err
	}
	if int(firstWayOffset) > r.size()-r.pos() {
		return PoiWayBundle{}, &ErrMalformedHeader{Field: "first_way_offset", Value: firstWayOffset}
	}
	firstWayPosition := r.pos() + int(firstWayOffset)

	pois, err := d.processPois(r, row.poiCount, tile, readBbox)
	if err != nil {
		return PoiWayBundle{}, err
	}

	bundle := PoiWayBundle{Pois: pois}
	if d.selector == SelectorPois {
		return bundle, nil
	}

	r.setPosition(firstWayPosition)
	ways, err := d.processWays(r, row.wayCount, tile, readBbox, tileBitmask, useBitmask)
	if err != nil {
		return PoiWayBundle{}, err
	}
	bundle.Ways = ways
	return bundle, nil
}

func (d *blockDecoder) checkSignature(r *readBuffer, length int, prefix string) error {
	sig, err := r.readUTF8EncodedStringWithLength(length)
	if err != nil {
		return err
	}
	if len(sig) < len(prefix) || sig[:len(prefix)] != prefix {
		return &ErrMalformedHeader{Field: "signature", Value: sig}
	}
	return nil
}

type zoomTableRow struct {
	poiCount int
	wayCount int
}

// readZoomTableRows reads exactly rows (poiCount, wayCount) VBE-U pairs,
// each row holding the cumulative POI and way count from the sub-file's
// minimum zoom level up to and including that row's zoom level.
func readZoomTableRows(r *readBuffer, rows int) ([]zoomTableRow, error) {
	table := make([]zoomTableRow, 0, rows)
	for i := 0; i < rows; i++ {
		poiCount, err := r.readUnsignedInt()
		if err != nil {
			return nil, err
		}
		wayCount, err := r.readUnsignedInt()
		if err != nil {
			return nil, err
		}
		table = append(table, zoomTableRow{poiCount: int(poiCount), wayCount: int(wayCount)})
	}
	return table, nil
}

func (d *blockDecoder) processPois(r *readBuffer, count int, tile Tile, readBbox BoundingBox) ([]PointOfInterest, error) {
	tileLat := tileYToLatitude(tile.TileY, tile.ZoomLevel)
	tileLon := tileXToLongitude(tile.TileX, tile.ZoomLevel)

	pois := make([]PointOfInterest, 0, count)
	for i := 0; i < count; i++ {
		if d.debugFile {
			if err := d.checkSignature(r, signatureLengthPoi, "POI-signature-"); err != nil {
				return nil, err
			}
		}

		latDelta, err := r.readSignedInt()
		if err != nil {
			return nil, err
		}
		lonDelta, err := r.readSignedInt()
		if err != nil {
			return nil, err
		}
		lat := tileLat + microdegreesToDegrees(latDelta)
		lon := snapToDateLine(tileLon + microdegreesToDegrees(lonDelta))

		special, err := r.readByte()
		if err != nil {
			return nil, err
		}
		layer := int8((special & poiLayerBitmask) >> poiLayerShift)
		numberOfTags := int(special & poiNumberOfTagsBitmask)

		tags, err := r.readTags(d.poiTags, numberOfTags)
		if err != nil {
			return nil, err
		}

		feature, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if feature&poiFeatureName != 0 {
			s, err := r.readUTF8EncodedString()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyName, s))
		}
		if feature&poiFeatureHouseNumber != 0 {
			s, err := r.readUTF8EncodedString()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyHouseNumber, s))
		}
		if feature&poiFeatureElevation != 0 {
			v, err := r.readSignedInt()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyElevation, strconv.Itoa(int(v))))
		}

		poi := PointOfInterest{Layer: layer, Tags: tags, Position: LatLong{Latitude: lat, Longitude: lon}}
		if !readBbox.Contains(lat, lon) {
			continue
		}
		pois = append(pois, poi)
	}
	return pois, nil
}

func (d *blockDecoder) processWays(r *readBuffer, count int, tile Tile, readBbox BoundingBox, tileBitmask uint16, useBitmask bool) ([]Way, error) {
	ways := make([]Way, 0, count)
	for i := 0; i < count; i++ {
		if d.debugFile {
			if err := d.checkSignature(r, signatureLengthWay, "way-signature-"); err != nil {
				return nil, err
			}
		}

		wayDataSize, err := r.readUnsignedInt()
		if err != nil {
			return nil, err
		}
		wayStart := r.pos()
		wayEnd := wayStart + int(wayDataSize)

		subTileBitmask, err := r.readShort()
		if err != nil {
			return nil, err
		}
		if useBitmask && uint16(subTileBitmask)&tileBitmask == 0 {
			r.setPosition(wayEnd)
			continue
		}

		special, err := r.readByte()
		if err != nil {
			return nil, err
		}
		layer := int8((special & wayLayerBitmask) >> wayLayerShift)
		numberOfTags := int(special & wayNumberOfTagsBitmask)

		tags, err := r.readTags(d.wayTags, numberOfTags)
		if err != nil {
			return nil, err
		}

		feature, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if feature&wayFeatureName != 0 {
			s, err := r.readUTF8EncodedString()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyName, s))
		}
		if feature&wayFeatureHouseNumber != 0 {
			s, err := r.readUTF8EncodedString()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyHouseNumber, s))
		}
		if feature&wayFeatureRef != 0 {
			s, err := r.readUTF8EncodedString()
			if err != nil {
				return nil, err
			}
			tags = append(tags, NewTag(tagKeyRef, s))
		}

		hasLabelPosition := feature&wayFeatureLabelPosition != 0
		var labelLatOffset, labelLonOffset float64
		if hasLabelPosition {
			latDelta, err := r.readSignedInt()
			if err != nil {
				return nil, err
			}
			lonDelta, err := r.readSignedInt()
			if err != nil {
				return nil, err
			}
			labelLatOffset = microdegreesToDegrees(latDelta)
			labelLonOffset = microdegreesToDegrees(lonDelta)
		}

		numberOfBlocks := 1
		if feature&wayFeatureDataBlocksByte != 0 {
			v, err := r.readUnsignedInt()
			if err != nil {
				return nil, err
			}
			numberOfBlocks = int(v)
		}
		if numberOfBlocks < 1 || numberOfBlocks > 32767 {
			return nil, &ErrMalformedHeader{Field: "way_number_of_blocks", Value: numberOfBlocks}
		}

		doubleDelta := feature&wayFeatureDoubleDeltaEncoding != 0

		rings := make([][]LatLong, 0, numberOfBlocks)
		for b := 0; b < numberOfBlocks; b++ {
			numberOfRings, err := r.readUnsignedInt()
			if err != nil {
				return nil, err
			}
			if numberOfRings < 1 || numberOfRings > 32767 {
				return nil, &ErrMalformedHeader{Field: "way_number_of_rings", Value: numberOfRings}
			}
			for k := uint32(0); k < numberOfRings; k++ {
				ring, err := d.decodeWayNodes(r, tile, doubleDelta)
				if err != nil {
					return nil, err
				}
				rings = append(rings, ring)
			}
		}

		var labelPosition *LatLong
		if hasLabelPosition && len(rings) > 0 && len(rings[0]) > 0 {
			firstNode := rings[0][0]
			labelPosition = &LatLong{
				Latitude:  firstNode.Latitude + labelLatOffset,
				Longitude: firstNode.Longitude + labelLonOffset,
			}
		}

		way := Way{Layer: layer, Tags: tags, WayNodes: rings, LabelPosition: labelPosition}

		if d.selector == SelectorNamed && !hasLabelTag(tags) {
			r.setPosition(wayEnd)
			continue
		}
		if d.wayFilter.Enabled && !wayIntersectsBbox(way, readBbox, d.wayFilter.Distance) {
			r.setPosition(wayEnd)
			continue
		}

		ways = append(ways, way)
		r.setPosition(wayEnd)
	}
	return ways, nil
}

// decodeWayNodes reads one node ring: a VBE-U node count followed by that
// many lat/lon pairs. In double-delta mode each coordinate after the second
// is delta-encoded against a second-order prediction (current = previous +
// (previous - previous-previous) + delta); single-delta mode encodes each
// coordinate directly against its predecessor.
func (d *blockDecoder) decodeWayNodes(r *readBuffer, tile Tile, doubleDelta bool) ([]LatLong, error) {
	count, err := r.readUnsignedInt()
	if err != nil {
		return nil, err
	}
	if count < 2 || count > 32767 {
		return nil, &ErrMalformedHeader{Field: "way_node_count", Value: count}
	}

	nodes := make([]LatLong, 0, count)

	firstLatDelta, err := r.readSignedInt()
	if err != nil {
		return nil, err
	}
	firstLonDelta, err := r.readSignedInt()
	if err != nil {
		return nil, err
	}
	lat := tileYToLatitude(tile.TileY, tile.ZoomLevel) + microdegreesToDegrees(firstLatDelta)
	lon := snapToDateLine(tileXToLongitude(tile.TileX, tile.ZoomLevel) + microdegreesToDegrees(firstLonDelta))
	nodes = append(nodes, LatLong{Latitude: lat, Longitude: lon})

	prevLat, prevLon := lat, lon
	prevPrevLat, prevPrevLon := lat, lon

	for i := uint32(1); i < count; i++ {
		latDelta, err := r.readSignedInt()
		if err != nil {
			return nil, err
		}
		lonDelta, err := r.readSignedInt()
		if err != nil {
			return nil, err
		}

		var newLat, newLon float64
		if doubleDelta {
			newLat = prevLat + (prevLat - prevPrevLat) + microdegreesToDegrees(latDelta)
			newLon = prevLon + (prevLon - prevPrevLon) + microdegreesToDegrees(lonDelta)
		} else {
			newLat = prevLat + microdegreesToDegrees(latDelta)
			newLon = prevLon + microdegreesToDegrees(lonDelta)
		}
		newLon = snapToDateLine(newLon)

		nodes = append(nodes, LatLong{Latitude: newLat, Longitude: newLon})
		prevPrevLat, prevPrevLon = prevLat, prevLon
		prevLat, prevLon = newLat, newLon
	}

	return nodes, nil
}

func hasLabelTag(tags []Tag) bool {
	for _, t := range tags {
		if t.Key == tagKeyName || t.Key == tagKeyHouseNumber || t.Key == tagKeyRef {
			return true
		}
	}
	return false
}

func wayIntersectsBbox(w Way, bbox BoundingBox, filterDistance float64) bool {
	extended := bbox.ExtendMeters(filterDistance)
	for _, ring := range w.WayNodes {
		for _, n := range ring {
			if extended.Contains(n.Latitude, n.Longitude) {
				return true
			}
		}
	}
	return false
}

