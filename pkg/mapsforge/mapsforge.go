package mapsforge

import (
	"github.com/beetlebugorg/mapsforge/internal/mapfile"
)

// Tag is an immutable (key, value) pair.
type Tag struct {
	Key   string
	Value string
}

// LatLong is a WGS84 coordinate pair in degrees.
type LatLong struct {
	Latitude  float64
	Longitude float64
}

// BoundingBox is a closed WGS84 rectangle with min <= max on each axis.
type BoundingBox struct {
	MinLatitude  float64
	MinLongitude float64
	MaxLatitude  float64
	MaxLongitude float64
}

// NewBoundingBox validates and constructs a BoundingBox.
func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) (BoundingBox, error) {
	b, err := mapfile.NewBoundingBox(minLat, minLon, maxLat, maxLon)
	if err != nil {
		return BoundingBox{}, err
	}
	return BoundingBox(b), nil
}

// PointOfInterest is one decoded POI record.
type PointOfInterest struct {
	Layer    int8
	Tags     []Tag
	Position LatLong
}

// Way is one decoded way: a layer, its tags, one or more node rings (the
// first the outer ring, any further rings inner rings of a multi-polygon),
// and an optional label placement point.
type Way struct {
	Layer         int8
	Tags          []Tag
	WayNodes      [][]LatLong
	LabelPosition *LatLong
}

// MapReadResult is the outcome of a read: every POI and way decoded across
// the blocks visited, flattened into two lists, and whether every visited
// block was water-only.
type MapReadResult struct {
	Pois    []PointOfInterest
	Ways    []Way
	IsWater bool
}

func convertResult(r *mapfile.MapReadResult) *MapReadResult {
	out := &MapReadResult{IsWater: r.IsWater}
	for _, bundle := range r.Bundles {
		for _, p := range bundle.Pois {
			out.Pois = append(out.Pois, convertPoi(p))
		}
		for _, w := range bundle.Ways {
			out.Ways = append(out.Ways, convertWay(w))
		}
	}
	return out
}

func convertTags(tags []mapfile.Tag) []Tag {
	if tags == nil {
		return nil
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = Tag{Key: t.Key, Value: t.Value}
	}
	return out
}

func convertPoi(p mapfile.PointOfInterest) PointOfInterest {
	return PointOfInterest{
		Layer:    p.Layer,
		Tags:     convertTags(p.Tags),
		Position: LatLong(p.Position),
	}
}

func convertWay(w mapfile.Way) Way {
	rings := make([][]LatLong, len(w.WayNodes))
	for i, ring := range w.WayNodes {
		r := make([]LatLong, len(ring))
		for j, n := range ring {
			r[j] = LatLong(n)
		}
		rings[i] = r
	}
	var label *LatLong
	if w.LabelPosition != nil {
		l := LatLong(*w.LabelPosition)
		label = &l
	}
	return Way{
		Layer:         w.Layer,
		Tags:          convertTags(w.Tags),
		WayNodes:      rings,
		LabelPosition: label,
	}
}

// MapFileInfo is the immutable descriptor parsed from a map file's header.
type MapFileInfo struct {
	BoundingBox         BoundingBox
	FileSize            int64
	FileVersion         int32
	MapDate             int64
	NumberOfSubFiles    uint8
	PoiTags             []Tag
	WayTags             []Tag
	ProjectionName      string
	TilePixelSize       int32
	DebugFile           bool
	Comment             *string
	CreatedBy           *string
	LanguagesPreference *string
	StartPosition       *LatLong
	StartZoomLevel      *uint8
	ZoomLevelMin        uint8
	ZoomLevelMax        uint8
}

func convertInfo(info *mapfile.MapFileInfo) *MapFileInfo {
	var startPos *LatLong
	if info.StartPosition != nil {
		p := LatLong(*info.StartPosition)
		startPos = &p
	}
	return &MapFileInfo{
		BoundingBox:         BoundingBox(info.BoundingBox),
		FileSize:            info.FileSize,
		FileVersion:         info.FileVersion,
		MapDate:             info.MapDate,
		NumberOfSubFiles:    info.NumberOfSubFiles,
		PoiTags:             convertTags(info.PoiTags),
		WayTags:             convertTags(info.WayTags),
		ProjectionName:      info.ProjectionName,
		TilePixelSize:       info.TilePixelSize,
		DebugFile:           info.DebugFile,
		Comment:             info.Comment,
		CreatedBy:           info.CreatedBy,
		LanguagesPreference: info.LanguagesPreference,
		StartPosition:       startPos,
		StartZoomLevel:      info.StartZoomLevel,
		ZoomLevelMin:        info.ZoomLevelMin,
		ZoomLevelMax:        info.ZoomLevelMax,
	}
}

// Reader parses mapsforge binary map files.
//
// Create a Reader with Open and query it with ReadMapData, ReadPoiData, or
// ReadNamedItems.
type Reader interface {
	// Info returns the parsed header descriptor.
	Info() *MapFileInfo
	// DataTimestamp returns the map_date header field.
	DataTimestamp() int64
	// Languages splits the header's languages_preference field into its
	// component language codes, or nil if the header carries none.
	Languages() []string
	// StartPosition returns the header's preferred initial view center,
	// falling back to the bounding box center when absent.
	StartPosition() LatLong
	// StartZoomLevel returns the header's preferred initial zoom level,
	// falling back to 12 when absent.
	StartZoomLevel() uint8
	// RestrictToZoomRange clamps queries to [min, max], intersected with
	// the file's own declared zoom range.
	RestrictToZoomRange(min, max uint8)
	// ReadMapData reads every POI and way within bbox at zoom.
	ReadMapData(bbox BoundingBox, zoom uint8) (*MapReadResult, error)
	// ReadPoiData reads only POIs within bbox at zoom.
	ReadPoiData(bbox BoundingBox, zoom uint8) (*MapReadResult, error)
	// ReadNamedItems reads every POI within bbox at zoom, plus only those
	// ways carrying a name, house number, or reference tag.
	ReadNamedItems(bbox BoundingBox, zoom uint8) (*MapReadResult, error)
	// Read reads bbox at zoom, applying whichever of ReadMapData,
	// ReadPoiData, or ReadNamedItems the given Selector names.
	Read(bbox BoundingBox, zoom uint8, selector Selector) (*MapReadResult, error)
	// Close releases the underlying file descriptor.
	Close() error
}

// Open parses the header of the map file at path and returns a ready
// Reader.
//
// Example:
//
//	r, err := mapsforge.Open("berlin.map", mapsforge.DefaultParseOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
func Open(path string, opts ParseOptions) (Reader, error) {
	internal, err := mapfile.Open(path, opts.toInternal())
	if err != nil {
		return nil, err
	}
	return &readerWrapper{internal: internal}, nil
}

type readerWrapper struct {
	internal *mapfile.MapFile
}

func (r *readerWrapper) Info() *MapFileInfo { return convertInfo(r.internal.Info()) }

func (r *readerWrapper) DataTimestamp() int64 { return r.internal.DataTimestamp() }

func (r *readerWrapper) Languages() []string { return r.internal.Languages() }

func (r *readerWrapper) StartPosition() LatLong { return LatLong(r.internal.StartPosition()) }

func (r *readerWrapper) StartZoomLevel() uint8 { return r.internal.StartZoomLevel() }

func (r *readerWrapper) RestrictToZoomRange(min, max uint8) {
	r.internal.RestrictToZoomRange(min, max)
}

func (r *readerWrapper) ReadMapData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	res, err := r.internal.ReadMapData(mapfile.BoundingBox(bbox), zoom)
	if err != nil {
		return nil, err
	}
	return convertResult(res), nil
}

func (r *readerWrapper) ReadPoiData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	res, err := r.internal.ReadPoiData(mapfile.BoundingBox(bbox), zoom)
	if err != nil {
		return nil, err
	}
	return convertResult(res), nil
}

func (r *readerWrapper) ReadNamedItems(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	res, err := r.internal.ReadNamedItems(mapfile.BoundingBox(bbox), zoom)
	if err != nil {
		return nil, err
	}
	return convertResult(res), nil
}

func (r *readerWrapper) Read(bbox BoundingBox, zoom uint8, selector Selector) (*MapReadResult, error) {
	switch selector.toInternal() {
	case mapfile.SelectorPois:
		return r.ReadPoiData(bbox, zoom)
	case mapfile.SelectorNamed:
		return r.ReadNamedItems(bbox, zoom)
	default:
		return r.ReadMapData(bbox, zoom)
	}
}

func (r *readerWrapper) Close() error { return r.internal.Close() }
