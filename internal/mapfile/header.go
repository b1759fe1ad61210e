package mapfile

import (
	"strings"

	"go.uber.org/zap"
)

// Header-level constants, all bytes unless noted otherwise.
const (
	magicByte                = "mapsforge binary OSM"
	headerSizeMin            = 70
	headerSizeMax            = 1000000
	supportedFileVersionMin  = 3
	supportedFileVersionMax  = 5
	mercatorProjectionName   = "Mercator"
	baseZoomLevelMax         = 20
	signatureLengthIndex     = 16
	bytesPerIndexEntry       = 5
	defaultStartZoomLevel    = 12
	maxZoomLevel             = 22
	minMapDateMillis         = 1200000000000
)

// optionalFields holds the header's variable block of fields gated by the
// 1-byte flags field: comment, created-by, debug marker, start position,
// start zoom level, and preferred languages.
type optionalFields struct {
	isDebugFile            bool
	hasStartPosition       bool
	hasStartZoomLevel      bool
	hasLanguagesPreference bool
	hasComment             bool
	hasCreatedBy           bool

	startPosition        *LatLong
	startZoomLevel       *uint8
	languagesPreference  *string
	comment              *string
	createdBy            *string
}

func newOptionalFields(flags byte) optionalFields {
	return optionalFields{
		isDebugFile:            flags&0x80 != 0,
		hasStartPosition:       flags&0x40 != 0,
		hasStartZoomLevel:      flags&0x20 != 0,
		hasLanguagesPreference: flags&0x10 != 0,
		hasComment:             flags&0x08 != 0,
		hasCreatedBy:           flags&0x04 != 0,
	}
}

func (o *optionalFields) read(r *readBuffer) error {
	if o.hasStartPosition {
		latRaw, err := r.readInt()
		if err != nil {
			return err
		}
		lonRaw, err := r.readInt()
		if err != nil {
			return err
		}
		pos := LatLong{Latitude: float64(latRaw) / conversionFactor, Longitude: float64(lonRaw) / conversionFactor}
		o.startPosition = &pos
	}

	if o.hasStartZoomLevel {
		z, err := r.readByte()
		if err != nil {
			return err
		}
		if z > maxZoomLevel {
			return &ErrMalformedHeader{Field: "start_zoom_level", Value: z}
		}
		o.startZoomLevel = &z
	}

	if o.hasLanguagesPreference {
		s, err := r.readUTF8EncodedString()
		if err != nil {
			return err
		}
		o.languagesPreference = &s
	}

	if o.hasComment {
		s, err := r.readUTF8EncodedString()
		if err != nil {
			return err
		}
		o.comment = &s
	}

	if o.hasCreatedBy {
		s, err := r.readUTF8EncodedString()
		if err != nil {
			return err
		}
		o.createdBy = &s
	}

	return nil
}

// SubFileParameter describes one zoom stratum (sub-file) of the map file:
// its byte range, its base zoom level, and the boundary tiles and block
// grid derived from the file's global bounding box at that zoom.
type SubFileParameter struct {
	BaseZoomLevel      uint8
	ZoomLevelMin       uint8
	ZoomLevelMax       uint8
	StartAddress       int64
	IndexStartAddress  int64
	IndexEndAddress    int64
	SubFileSize        int64
	BoundaryTileLeft   int64
	BoundaryTileTop    int64
	BoundaryTileRight  int64
	BoundaryTileBottom int64
	BlocksWidth        int64
	BlocksHeight       int64
	NumberOfBlocks     int64
}

// cacheKey identifies a SubFileParameter for index-cache purposes. Equality
// and hashing are defined over (start_address, sub_file_size,
// base_zoom_level) rather than pointer identity, so a rebuilt header whose
// sub-files describe the same bytes still hits the cache.
func (p *SubFileParameter) cacheKey() subFileIdentity {
	return subFileIdentity{
		startAddress: p.StartAddress,
		subFileSize:  p.SubFileSize,
		baseZoom:     p.BaseZoomLevel,
	}
}

type subFileIdentity struct {
	startAddress int64
	subFileSize  int64
	baseZoom     uint8
}

type subFileParameterBuilder struct {
	baseZoomLevel     uint8
	zoomLevelMin      uint8
	zoomLevelMax      uint8
	startAddress      int64
	indexStartAddress int64
	subFileSize       int64
	boundingBox       BoundingBox
}

// build computes the derived boundary-tile and block-grid fields. Mapsforge
// writers emit these values using 64-bit wrap-around arithmetic, so the
// additions and subtractions here deliberately rely on Go's defined integer
// overflow semantics rather than guarding against it.
func (b subFileParameterBuilder) build() SubFileParameter {
	boundaryTileBottom := latitudeToTileY(b.boundingBox.MinLatitude, b.baseZoomLevel)
	boundaryTileLeft := longitudeToTileX(b.boundingBox.MinLongitude, b.baseZoomLevel)
	boundaryTileTop := latitudeToTileY(b.boundingBox.MaxLatitude, b.baseZoomLevel)
	boundaryTileRight := longitudeToTileX(b.boundingBox.MaxLongitude, b.baseZoomLevel)

	blocksWidth := boundaryTileRight - boundaryTileLeft + 1
	blocksHeight := boundaryTileBottom - boundaryTileTop + 1
	numberOfBlocks := blocksWidth * blocksHeight
	indexEndAddress := b.indexStartAddress + numberOfBlocks*bytesPerIndexEntry

	return SubFileParameter{
		BaseZoomLevel:      b.baseZoomLevel,
		ZoomLevelMin:       b.zoomLevelMin,
		ZoomLevelMax:       b.zoomLevelMax,
		StartAddress:       b.startAddress,
		IndexStartAddress:  b.indexStartAddress,
		IndexEndAddress:    indexEndAddress,
		SubFileSize:        b.subFileSize,
		BoundaryTileLeft:   boundaryTileLeft,
		BoundaryTileTop:    boundaryTileTop,
		BoundaryTileRight:  boundaryTileRight,
		BoundaryTileBottom: boundaryTileBottom,
		BlocksWidth:        blocksWidth,
		BlocksHeight:       blocksHeight,
		NumberOfBlocks:     numberOfBlocks,
	}
}

// MapFileInfo is the immutable descriptor built once at open time from the
// header: bounds, version, dictionaries, and the optional fields.
type MapFileInfo struct {
	BoundingBox          BoundingBox
	FileSize             int64
	FileVersion          int32
	MapDate              int64
	NumberOfSubFiles     uint8
	PoiTags              []Tag
	WayTags              []Tag
	ProjectionName       string
	TilePixelSize         int32
	DebugFile            bool
	Comment              *string
	CreatedBy            *string
	LanguagesPreference  *string
	StartPosition        *LatLong
	StartZoomLevel       *uint8
	ZoomLevelMin         uint8
	ZoomLevelMax         uint8
}

type mapFileInfoBuilder struct {
	boundingBox      BoundingBox
	fileSize         int64
	fileVersion      int32
	mapDate          int64
	numberOfSubFiles uint8
	optionalFields   optionalFields
	poiTags          []Tag
	wayTags          []Tag
	projectionName   string
	tilePixelSize    int32
	zoomLevelMin     uint8
	zoomLevelMax     uint8
}

func (b mapFileInfoBuilder) build() MapFileInfo {
	return MapFileInfo{
		BoundingBox:         b.boundingBox,
		FileSize:            b.fileSize,
		FileVersion:         b.fileVersion,
		MapDate:             b.mapDate,
		NumberOfSubFiles:    b.numberOfSubFiles,
		PoiTags:             b.poiTags,
		WayTags:             b.wayTags,
		ProjectionName:      b.projectionName,
		TilePixelSize:       b.tilePixelSize,
		DebugFile:           b.optionalFields.isDebugFile,
		Comment:             b.optionalFields.comment,
		CreatedBy:           b.optionalFields.createdBy,
		LanguagesPreference: b.optionalFields.languagesPreference,
		StartPosition:       b.optionalFields.startPosition,
		StartZoomLevel:      b.optionalFields.startZoomLevel,
		ZoomLevelMin:        b.zoomLevelMin,
		ZoomLevelMax:        b.zoomLevelMax,
	}
}

// MapFileHeader owns the parsed MapFileInfo and the dense zoom-level to
// sub-file lookup table built from the declared sub-files.
type MapFileHeader struct {
	info             *MapFileInfo
	subFileByZoom    []SubFileParameter
	zoomLevelMinimum uint8
	zoomLevelMaximum uint8
	log              *zap.Logger
}

func newMapFileHeader(log *zap.Logger) *MapFileHeader {
	return &MapFileHeader{zoomLevelMinimum: 255, log: log}
}

func (h *MapFileHeader) Info() *MapFileInfo { return h.info }

// QueryZoomLevel clamps a requested zoom level into the header's declared
// [min, max] range.
func (h *MapFileHeader) QueryZoomLevel(zoom uint8) uint8 {
	if zoom > h.zoomLevelMaximum {
		return h.zoomLevelMaximum
	}
	if zoom < h.zoomLevelMinimum {
		return h.zoomLevelMinimum
	}
	return zoom
}

// SubFileParameter returns the sub-file covering queryZoomLevel, or nil if
// the header declared no sub-files reaching that high.
func (h *MapFileHeader) SubFileParameter(queryZoomLevel int) *SubFileParameter {
	if queryZoomLevel < 0 || queryZoomLevel >= len(h.subFileByZoom) {
		return nil
	}
	p := h.subFileByZoom[queryZoomLevel]
	return &p
}

// readHeader parses the fixed header fields in wire order from offset 0 of
// r, then the per-sub-file descriptors, and finally builds the dense
// zoom-level lookup table.
func (h *MapFileHeader) readHeader(r *readBuffer, fileSize int64) error {
	if err := readMagicByte(r); err != nil {
		return err
	}
	if err := readRemainingHeader(r); err != nil {
		return err
	}

	b := mapFileInfoBuilder{}

	fileVersion, err := readFileVersion(r)
	if err != nil {
		return err
	}
	b.fileVersion = fileVersion

	if err := readFileSize(r, fileSize); err != nil {
		return err
	}
	b.fileSize = fileSize

	mapDate, err := readMapDate(r)
	if err != nil {
		return err
	}
	b.mapDate = mapDate

	bbox, err := readBoundingBox(r)
	if err != nil {
		return err
	}
	b.boundingBox = bbox

	tilePixelSize, err := readTilePixelSize(r)
	if err != nil {
		return err
	}
	b.tilePixelSize = tilePixelSize

	projectionName, err := readProjectionName(r)
	if err != nil {
		return err
	}
	b.projectionName = projectionName

	flags, err := r.readByte()
	if err != nil {
		return err
	}
	opt := newOptionalFields(flags)
	if err := opt.read(r); err != nil {
		return err
	}
	b.optionalFields = opt

	poiTags, err := readTagDictionary(r, "POI")
	if err != nil {
		return err
	}
	b.poiTags = poiTags

	wayTags, err := readTagDictionary(r, "way")
	if err != nil {
		return err
	}
	b.wayTags = wayTags

	if err := h.readSubFileParameters(r, fileSize, &b); err != nil {
		return err
	}

	info := b.build()
	h.info = &info
	return nil
}

func (h *MapFileHeader) readSubFileParameters(r *readBuffer, fileSize int64, b *mapFileInfoBuilder) error {
	numberOfSubFiles, err := r.readByte()
	if err != nil {
		return err
	}
	if numberOfSubFiles < 1 {
		return &ErrMalformedHeader{Field: "number_of_sub_files", Value: numberOfSubFiles}
	}
	b.numberOfSubFiles = numberOfSubFiles

	declared := make([]SubFileParameter, 0, numberOfSubFiles)

	for i := byte(0); i < numberOfSubFiles; i++ {
		baseZoomLevel, err := r.readByte()
		if err != nil {
			return err
		}
		if baseZoomLevel > baseZoomLevelMax {
			return &ErrMalformedHeader{Field: "base_zoom_level", Value: baseZoomLevel}
		}

		zoomLevelMin, err := r.readByte()
		if err != nil {
			return err
		}
		if zoomLevelMin > maxZoomLevel {
			return &ErrMalformedHeader{Field: "zoom_level_min", Value: zoomLevelMin}
		}

		zoomLevelMax, err := r.readByte()
		if err != nil {
			return err
		}
		if zoomLevelMax > maxZoomLevel {
			return &ErrMalformedHeader{Field: "zoom_level_max", Value: zoomLevelMax}
		}
		if zoomLevelMin > zoomLevelMax {
			return &ErrMalformedHeader{Field: "zoom_level_range", Value: []byte{zoomLevelMin, zoomLevelMax}}
		}

		startAddress, err := r.readLong()
		if err != nil {
			return err
		}
		if startAddress < headerSizeMin || startAddress >= fileSize {
			return &ErrMalformedHeader{Field: "start_address", Value: startAddress}
		}

		indexStartAddress := startAddress
		if b.optionalFields.isDebugFile {
			indexStartAddress = startAddress + signatureLengthIndex
		}

		subFileSize, err := r.readLong()
		if err != nil {
			return err
		}
		if subFileSize < 1 {
			return &ErrMalformedHeader{Field: "sub_file_size", Value: subFileSize}
		}

		param := subFileParameterBuilder{
			baseZoomLevel:     baseZoomLevel,
			zoomLevelMin:      zoomLevelMin,
			zoomLevelMax:      zoomLevelMax,
			startAddress:      startAddress,
			indexStartAddress: indexStartAddress,
			subFileSize:       subFileSize,
			boundingBox:       b.boundingBox,
		}.build()
		declared = append(declared, param)

		if h.zoomLevelMinimum > zoomLevelMin {
			h.zoomLevelMinimum = zoomLevelMin
			b.zoomLevelMin = zoomLevelMin
		}
		if h.zoomLevelMaximum < zoomLevelMax {
			h.zoomLevelMaximum = zoomLevelMax
			b.zoomLevelMax = zoomLevelMax
		}
	}

	dense := make([]SubFileParameter, 0, int(h.zoomLevelMaximum)+1)
	for zoom := 0; zoom <= int(h.zoomLevelMaximum); zoom++ {
		found := false
		for _, p := range declared {
			if zoom >= int(p.ZoomLevelMin) && zoom <= int(p.ZoomLevelMax) {
				dense = append(dense, p)
				found = true
				break
			}
		}
		if !found {
			dense = append(dense, declared[len(declared)-1])
		}
	}

	h.subFileByZoom = dense
	if h.log != nil {
		h.log.Debug("parsed sub-file parameters",
			zap.Int("declared", len(declared)),
			zap.Uint8("zoom_min", h.zoomLevelMinimum),
			zap.Uint8("zoom_max", h.zoomLevelMaximum))
	}
	return nil
}

func readMagicByte(r *readBuffer) error {
	ok, err := r.loadFrom(0, len(magicByte)+4)
	if err != nil {
		return err
	}
	if !ok {
		return &ErrInvalidMagic{Got: "<short read>"}
	}
	got, err := r.readUTF8EncodedStringWithLength(len(magicByte))
	if err != nil {
		return err
	}
	if got != magicByte {
		return &ErrInvalidMagic{Got: got}
	}
	return nil
}

func readRemainingHeader(r *readBuffer) error {
	size, err := r.readInt()
	if err != nil {
		return err
	}
	if size < headerSizeMin || size > headerSizeMax {
		return &ErrMalformedHeader{Field: "remaining_header_size", Value: size}
	}
	ok, err := r.loadFrom(int64(len(magicByte)+4), int(size))
	if err != nil {
		return err
	}
	if !ok {
		return &ErrMalformedHeader{Field: "remaining_header_size", Value: size}
	}
	return nil
}

func readFileVersion(r *readBuffer) (int32, error) {
	v, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if v < supportedFileVersionMin || v > supportedFileVersionMax {
		return 0, &ErrUnsupportedVersion{Version: v}
	}
	return v, nil
}

func readFileSize(r *readBuffer, actual int64) error {
	v, err := r.readLong()
	if err != nil {
		return err
	}
	if v != actual {
		return &ErrMalformedHeader{Field: "file_size", Value: v}
	}
	return nil
}

func readMapDate(r *readBuffer) (int64, error) {
	v, err := r.readLong()
	if err != nil {
		return 0, err
	}
	if v < minMapDateMillis {
		return 0, &ErrMalformedHeader{Field: "map_date", Value: v}
	}
	return v, nil
}

func readBoundingBox(r *readBuffer) (BoundingBox, error) {
	minLatRaw, err := r.readInt()
	if err != nil {
		return BoundingBox{}, err
	}
	minLonRaw, err := r.readInt()
	if err != nil {
		return BoundingBox{}, err
	}
	maxLatRaw, err := r.readInt()
	if err != nil {
		return BoundingBox{}, err
	}
	maxLonRaw, err := r.readInt()
	if err != nil {
		return BoundingBox{}, err
	}
	return NewBoundingBox(
		float64(minLatRaw)/conversionFactor,
		float64(minLonRaw)/conversionFactor,
		float64(maxLatRaw)/conversionFactor,
		float64(maxLonRaw)/conversionFactor,
	)
}

func readTilePixelSize(r *readBuffer) (int32, error) {
	v, err := r.readShort()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func readProjectionName(r *readBuffer) (string, error) {
	name, err := r.readUTF8EncodedString()
	if err != nil {
		return "", err
	}
	if name != mercatorProjectionName {
		return "", &ErrUnsupportedProjection{Name: name}
	}
	return name, nil
}

// readTagDictionary reads the POI or way tag dictionary: a 2-byte count
// followed by that many length-prefixed UTF-8 entries. Entries of the form
// "key=value" split at the first '=' into the Tag's Key and Value; an entry
// with no '=' is stored as both the key and the value of its Tag.
func readTagDictionary(r *readBuffer, what string) ([]Tag, error) {
	count, err := r.readShort()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, &ErrMalformedHeader{Field: what + "_tag_count", Value: count}
	}
	tags := make([]Tag, 0, count)
	for i := int16(0); i < count; i++ {
		s, err := r.readUTF8EncodedString()
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, &ErrMalformedHeader{Field: what + "_tag", Value: i}
		}
		tags = append(tags, splitTagDefinition(s))
	}
	return tags, nil
}

func splitTagDefinition(s string) Tag {
	if idx := strings.IndexByte(s, '='); idx >= 0 {
		return Tag{Key: s[:idx], Value: s[idx+1:]}
	}
	return Tag{Key: s, Value: s}
}
