// Package mapsforge provides a clean public API for reading mapsforge
// binary map files: the offline .map format used by OsmAnd, Locus, and
// other OpenStreetMap-based navigation applications.
package mapsforge
