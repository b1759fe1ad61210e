package mapsforge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/beetlebugorg/mapsforge/internal/mapfile"
	"github.com/dhconnelly/rtreego"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// entry is one indexed map file's metadata: its path and coverage, kept in
// the R-tree independently of whether the file handle itself is currently
// open.
type entry struct {
	path  string
	bbox  BoundingBox
	info  *MapFileInfo
}

// Bounds implements rtreego.Spatial so an entry can be inserted directly
// into the spatial index.
func (e entry) Bounds() rtreego.Rect {
	point := rtreego.Point{e.bbox.MinLongitude, e.bbox.MinLatitude}
	lengths := []float64{
		e.bbox.MaxLongitude - e.bbox.MinLongitude,
		e.bbox.MaxLatitude - e.bbox.MinLatitude,
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Store indexes a directory of mapsforge .map files by geographic coverage
// and keeps a bounded LRU cache of open Readers, so a query over a large
// region only opens (and keeps open) the handful of files it actually
// touches.
type Store struct {
	mu      sync.Mutex
	entries []entry
	rtree   *rtreego.Rtree
	cache   *lru.Cache[string, Reader]
	opts    ParseOptions
	log     *zap.Logger
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// OpenFileCacheSize bounds how many map files the Store keeps open at
	// once. Least-recently-used files are closed first. Zero selects a
	// sensible default.
	OpenFileCacheSize int
	ParseOptions      ParseOptions
}

// DefaultStoreOptions returns the options a plain OpenStore call uses.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		OpenFileCacheSize: 16,
		ParseOptions:      DefaultParseOptions(),
	}
}

// OpenStore scans root for .map files, reads each one's header to learn its
// coverage, and returns a Store ready for spatial queries. Scanning happens
// once at open time; files are opened lazily per query thereafter.
func OpenStore(root string, opts StoreOptions) (*Store, error) {
	if opts.OpenFileCacheSize <= 0 {
		opts.OpenFileCacheSize = 16
	}
	log := opts.ParseOptions.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".map" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mapsforge: walk %s: %w", root, err)
	}

	cache, err := lru.NewWithEvict[string, Reader](opts.OpenFileCacheSize, func(_ string, r Reader) {
		r.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("mapsforge: allocate file cache: %w", err)
	}

	s := &Store{
		cache: cache,
		rtree: rtreego.NewTree(2, 25, 50),
		opts:  opts.ParseOptions,
		log:   log,
	}

	for _, path := range paths {
		if err := s.addFile(path); err != nil {
			log.Warn("skipping unreadable map file", zap.String("path", path), zap.Error(err))
			continue
		}
	}

	if len(s.entries) == 0 {
		return nil, fmt.Errorf("mapsforge: no readable .map files found in %s", root)
	}

	return s, nil
}

func (s *Store) addFile(path string) error {
	r, err := Open(path, s.opts)
	if err != nil {
		return err
	}
	defer r.Close()

	info := r.Info()
	e := entry{path: path, bbox: info.BoundingBox, info: info}
	s.entries = append(s.entries, e)
	s.rtree.Insert(e)
	return nil
}

// FilesCovering returns the paths of every indexed map file whose declared
// bounding box intersects bbox.
func (s *Store) FilesCovering(bbox BoundingBox) []string {
	point := rtreego.Point{bbox.MinLongitude, bbox.MinLatitude}
	lengths := []float64{
		bbox.MaxLongitude - bbox.MinLongitude,
		bbox.MaxLatitude - bbox.MinLatitude,
	}
	rect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return nil
	}

	var paths []string
	for _, sp := range s.rtree.SearchIntersect(rect) {
		paths = append(paths, sp.(entry).path)
	}
	return paths
}

// ReadMapData reads every POI and way within bbox at zoom, across every
// indexed map file whose coverage intersects bbox, merging their results.
func (s *Store) ReadMapData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	return s.readAll(bbox, zoom, func(r Reader) (*MapReadResult, error) {
		return r.ReadMapData(bbox, zoom)
	})
}

// ReadPoiData reads only POIs within bbox at zoom across every relevant map
// file.
func (s *Store) ReadPoiData(bbox BoundingBox, zoom uint8) (*MapReadResult, error) {
	return s.readAll(bbox, zoom, func(r Reader) (*MapReadResult, error) {
		return r.ReadPoiData(bbox, zoom)
	})
}

func (s *Store) readAll(bbox BoundingBox, zoom uint8, read func(Reader) (*MapReadResult, error)) (*MapReadResult, error) {
	paths := s.FilesCovering(bbox)
	merged := &MapReadResult{IsWater: true}
	anyBlocks := false

	for _, path := range paths {
		r, err := s.acquire(path)
		if err != nil {
			s.log.Warn("skipping map file that failed to open", zap.String("path", path), zap.Error(err))
			continue
		}

		res, err := read(r)
		if err != nil {
			s.log.Warn("read failed for map file", zap.String("path", path), zap.Error(err))
			continue
		}

		merged.Pois = append(merged.Pois, res.Pois...)
		merged.Ways = append(merged.Ways, res.Ways...)
		if !res.IsWater {
			merged.IsWater = false
		}
		anyBlocks = true
	}

	merged.IsWater = merged.IsWater && anyBlocks
	return merged, nil
}

func (s *Store) acquire(path string) (Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.cache.Get(path); ok {
		return r, nil
	}

	r, err := Open(path, s.opts)
	if err != nil {
		return nil, err
	}
	s.cache.Add(path, r)
	return r, nil
}

// Close closes every map file currently held open by the Store. The
// cache's own eviction callback, registered in OpenStore, performs the
// actual Reader.Close calls.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	return nil
}
