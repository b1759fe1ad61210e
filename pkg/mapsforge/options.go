package mapsforge

import (
	"github.com/beetlebugorg/mapsforge/internal/mapfile"
	"go.uber.org/zap"
)

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

func (s Selector) toInternal() mapfile.Selector {
	switch s {
	case SelectorPois:
		return mapfile.SelectorPois
	case SelectorNamed:
		return mapfile.SelectorNamed
	default:
		return mapfile.SelectorAll
	}
}

// WayFilter bounds how aggressively way geometry is discarded when it
// cannot possibly intersect a query's bounding box.
type WayFilter struct {
	Enabled  bool
	Distance float64
}

// DefaultWayFilter matches the reference reader's built-in default: enabled
// with a 20 meter margin.
func DefaultWayFilter() WayFilter {
	return WayFilter{Enabled: true, Distance: 20}
}

// ParseOptions configures an Open call.
type ParseOptions struct {
	// IndexCacheSize is the number of 640-byte index blocks the LRU index
	// cache retains. Zero selects a sensible default.
	IndexCacheSize int
	// WayFilter controls bounding-box-based way geometry culling.
	WayFilter WayFilter
	// Logger receives structured diagnostics. A nil Logger disables logging.
	Logger *zap.Logger
}

// DefaultParseOptions returns the options a plain Open call uses.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		WayFilter: DefaultWayFilter(),
		Logger:    zap.NewNop(),
	}
}

func (o ParseOptions) toInternal() mapfile.ParseOptions {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return mapfile.ParseOptions{
		IndexCacheSize: o.IndexCacheSize,
		WayFilter:      mapfile.WayFilter(o.WayFilter),
		Logger:         logger,
	}
}
