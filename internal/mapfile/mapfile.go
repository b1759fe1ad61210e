package mapfile

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	indexCacheSize        = 64
	defaultTilePixelSize  = 256
)

// ParseOptions configures a MapFile open.
type ParseOptions struct {
	// IndexCacheSize is the number of 640-byte index blocks the LRU index
	// cache retains.
	IndexCacheSize int
	// WayFilter controls how aggressively way geometry is discarded when it
	// cannot intersect the query bounding box.
	WayFilter WayFilter
	// Logger receives structured diagnostics. A nil Logger disables logging.
	Logger *zap.Logger
}

// DefaultParseOptions returns the options a plain Open call uses.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		IndexCacheSize: indexCacheSize,
		WayFilter:      DefaultWayFilter(),
		Logger:         zap.NewNop(),
	}
}

// MapFile is a handle onto one opened mapsforge .map file: its parsed
// header and the index cache and byte source needed to resolve reads.
type MapFile struct {
	file      *os.File
	header    *MapFileHeader
	index     *indexCache
	opts      ParseOptions
	zoomMin   uint8
	zoomMax   uint8
}

// Open parses the header of the map file at path and returns a ready
// handle. The file is kept open for the lifetime of the handle; callers
// must call Close when done.
func Open(path string, opts ParseOptions) (*MapFile, error) {
	if opts.IndexCacheSize <= 0 {
		opts.IndexCacheSize = indexCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ErrIO{Op: "open", Err: err}
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ErrIO{Op: "stat", Err: err}
	}

	header := newMapFileHeader(opts.Logger)
	rb := newReadBuffer(f)
	if err := header.readHeader(rb, stat.Size()); err != nil {
		f.Close()
		return nil, err
	}

	idx, err := newIndexCache(f, opts.IndexCacheSize, opts.Logger)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MapFile{
		file:    f,
		header:  header,
		index:   idx,
		opts:    opts,
		zoomMin: header.zoomLevelMinimum,
		zoomMax: header.zoomLevelMaximum,
	}, nil
}

// Close releases the underlying file descriptor.
func (m *MapFile) Close() error {
	if err := m.file.Close(); err != nil {
		return &ErrIO{Op: "close", Err: err}
	}
	return nil
}

// Info returns the parsed header descriptor.
func (m *MapFile) Info() *MapFileInfo { return m.header.Info() }

// DataTimestamp returns the map_date header field: the milliseconds-since-
// epoch timestamp the source data was current as of.
func (m *MapFile) DataTimestamp() int64 { return m.header.Info().MapDate }

// fallbackStartZoomLevel is used when the header carries no start_zoom_level
// optional field.
const fallbackStartZoomLevel = defaultStartZoomLevel

// StartPosition returns the header's preferred initial view center, falling
// back to the bounding box center when the header carries no start position.
func (m *MapFile) StartPosition() LatLong {
	info := m.header.Info()
	if info.StartPosition != nil {
		return *info.StartPosition
	}
	return info.BoundingBox.CenterPoint()
}

// StartZoomLevel returns the header's preferred initial zoom level, falling
// back to a default of 12 when the header carries no start zoom level.
func (m *MapFile) StartZoomLevel() uint8 {
	info := m.header.Info()
	if info.StartZoomLevel != nil {
		return *info.StartZoomLevel
	}
	return fallbackStartZoomLevel
}

// Languages splits the header's comma-separated languages_preference field
// into its component language codes, or nil if the header carries none.
func (m *MapFile) Languages() []string {
	pref := m.header.Info().LanguagesPreference
	if pref == nil || *pref == "" {
		return nil
	}
	return strings.Split(*pref, ",")
}

// RestrictToZoomRange clamps queries to [min, max], intersected with the
// header's own declared zoom range.
func (m *MapFile) RestrictToZoomRange(min, max uint8) {
	if min > m.header.zoomLevelMinimum {
		m.zoomMin = min
	} else {
		m.zoomMin = m.header.zoomLevelMinimum
	}
	if max < m.header.zoomLevelMaximum {
		m.zoomMax = max
	} else {
		m.zoomMax = m.header.zoomLevelMaximum
	}
}

// ReadPoiData reads only POIs within bbox at zoom, equivalent to
// ReadMapData with SelectorPois.
func (m *MapFile) ReadPoiData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	return m.readMapData(bbox, zoom, SelectorPois)
}

// ReadNamedItems reads every POI within bbox at zoom, plus only those ways
// carrying a name, house number, or reference tag.
func (m *MapFile) ReadNamedItems(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	return m.readMapData(bbox, zoom, SelectorNamed)
}

// ReadMapData reads every POI and way within bbox at zoom.
func (m *MapFile) ReadMapData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	return m.readMapData(bbox, zoom, SelectorAll)
}

func (m *MapFile) readMapData(bbox BoundingBox, zoom uint8, selector Selector) (*MapReadResult, error) {
	if bbox.MinLatitude > bbox.MaxLatitude || bbox.MinLongitude > bbox.MaxLongitude {
		return nil, &ErrInvalidRange{Reason: "bounding box min exceeds max"}
	}

	queryZoomLevel := m.header.QueryZoomLevel(clampZoom(zoom, m.zoomMin, m.zoomMax))
	sub := m.header.SubFileParameter(int(queryZoomLevel))
	if sub == nil {
		return &MapReadResult{}, nil
	}

	upperLeft := NewTile(longitudeToTileX(bbox.MinLongitude, queryZoomLevel), latitudeToTileY(bbox.MaxLatitude, queryZoomLevel), queryZoomLevel, defaultTilePixelSize)
	lowerRight := NewTile(longitudeToTileX(bbox.MaxLongitude, queryZoomLevel), latitudeToTileY(bbox.MinLatitude, queryZoomLevel), queryZoomLevel, defaultTilePixelSize)

	q := calculateBaseTiles(upperLeft, lowerRight, sub)
	q.queryZoomLevel = queryZoomLevel

	readBbox := tileBoundingBoxRange(upperLeft, lowerRight)

	decoder := &blockDecoder{
		poiTags:   m.header.Info().PoiTags,
		wayTags:   m.header.Info().WayTags,
		debugFile: m.header.Info().DebugFile,
		selector:  selector,
		wayFilter: m.opts.WayFilter,
	}

	return m.processBlocks(q, sub, decoder, readBbox)
}

func clampZoom(zoom, min, max uint8) uint8 {
	if zoom < min {
		return min
	}
	if zoom > max {
		return max
	}
	return zoom
}

// processBlocks walks the resolved block rectangle, resolving each block's
// byte range via the index cache, decoding it, and accumulating results.
// Index-resolution failures on an individual block are logged and skipped
// rather than aborting the whole read, matching the reference reader's
// tolerance for a locally corrupt index entry.
func (m *MapFile) processBlocks(q queryParameters, sub *SubFileParameter, decoder *blockDecoder, readBbox BoundingBox) (*MapReadResult, error) {
	result := &MapReadResult{}
	blocksRead := 0
	allWater := true

	for blockY := q.fromBlockY; blockY <= q.toBlockY; blockY++ {
		for blockX := q.fromBlockX; blockX <= q.toBlockX; blockX++ {
			blockNumber := blockY*sub.BlocksWidth + blockX

			entry, err := m.index.get(sub, blockNumber)
			if err != nil {
				m.opts.Logger.Warn("index lookup failed, skipping block",
					zap.Int64("block", blockNumber), zap.Error(err))
				continue
			}
			if entry.Offset == 0 && blockNumber != 0 {
				continue
			}

			nextOffset := sub.SubFileSize
			if blockNumber+1 < sub.NumberOfBlocks {
				nextEntry, err := m.index.get(sub, blockNumber+1)
				if err == nil && nextEntry.Offset > 0 {
					nextOffset = nextEntry.Offset
				}
			}

			blockSize := nextOffset - entry.Offset
			if blockSize <= 0 {
				m.opts.Logger.Debug("non-positive block size, skipping",
					zap.Int64("block", blockNumber), zap.Int64("size", blockSize))
				continue
			}

			rb := newReadBuffer(m.file)
			ok, err := rb.loadFrom(sub.StartAddress+entry.Offset, int(blockSize))
			if err != nil {
				m.opts.Logger.Warn("block read failed, skipping", zap.Int64("block", blockNumber), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}

			tileX := sub.BoundaryTileLeft + blockX
			tileY := sub.BoundaryTileTop + blockY
			tile := NewTile(tileX, tileY, sub.BaseZoomLevel, defaultTilePixelSize)

			bundle, err := decoder.decode(rb, sub, q.queryZoomLevel, tile, readBbox, q.queryTileBitmask, q.useTileBitmask)
			if err != nil {
				m.opts.Logger.Warn("block decode failed, skipping", zap.Int64("block", blockNumber), zap.Error(err))
				continue
			}

			blocksRead++
			if !entry.Water {
				allWater = false
			}
			result.add(bundle)
		}
	}

	result.IsWater = allWater && blocksRead > 0
	return result, nil
}
