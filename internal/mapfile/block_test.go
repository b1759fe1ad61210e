package mapfile

import (
	"bytes"
	"testing"
)

// zeroOriginTile is the tile whose top-left corner projects to (lat 0, lon
// 0), so tests can write node deltas as if they were absolute coordinates.
var zeroOriginTile = Tile{TileX: 1, TileY: 1, ZoomLevel: 1}

func newBufferFromBytes(t *testing.T, b []byte) *readBuffer {
	t.Helper()
	r := newReadBuffer(bytes.NewReader(b))
	ok, err := r.loadFrom(0, len(b))
	if err != nil || !ok {
		t.Fatalf("loadFrom failed: ok=%v err=%v", ok, err)
	}
	return r
}

func vbeUnsigned(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		out = append(out, b)
		return out
	}
}

func vbeSigned(v int64) []byte {
	neg := v < 0
	if neg {
		v = -v
	}
	if v < 0x40 {
		b := byte(v)
		if neg {
			b |= 0x40
		}
		return []byte{b}
	}
	var out []byte
	first := byte(v & 0x7f)
	out = append(out, first|0x80)
	v >>= 7
	for v >= 0x40 {
		out = append(out, byte(v&0x7f)|0x80)
		v >>= 7
	}
	last := byte(v)
	if neg {
		last |= 0x40
	}
	out = append(out, last)
	return out
}

func TestReadZoomTableRows(t *testing.T) {
	var buf []byte
	buf = append(buf, vbeUnsigned(3)...)  // poi count row 0
	buf = append(buf, vbeUnsigned(5)...)  // way count row 0
	buf = append(buf, vbeUnsigned(10)...) // poi count row 1
	buf = append(buf, vbeUnsigned(20)...) // way count row 1

	r := newBufferFromBytes(t, buf)
	rows, err := readZoomTableRows(r, 2)
	if err != nil {
		t.Fatalf("readZoomTableRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].poiCount != 3 || rows[0].wayCount != 5 {
		t.Errorf("row 0 = %+v, want {3 5}", rows[0])
	}
	if rows[1].poiCount != 10 || rows[1].wayCount != 20 {
		t.Errorf("row 1 = %+v, want {10 20}", rows[1])
	}
}

func TestDecodeWayNodesSingleDelta(t *testing.T) {
	var buf []byte
	buf = append(buf, vbeUnsigned(3)...) // node count

	// First node: absolute micro-degrees.
	buf = append(buf, vbeSigned(10000000)...) // lat = 10.0
	buf = append(buf, vbeSigned(10000000)...) // lon = 10.0

	// Second node: delta +1 degree each axis.
	buf = append(buf, vbeSigned(1000000)...)
	buf = append(buf, vbeSigned(1000000)...)

	// Third node: delta +1 degree each axis again.
	buf = append(buf, vbeSigned(1000000)...)
	buf = append(buf, vbeSigned(1000000)...)

	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{}
	nodes, err := d.decodeWayNodes(r, zeroOriginTile, false)
	if err != nil {
		t.Fatalf("decodeWayNodes failed: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}
	want := []float64{10.0, 11.0, 12.0}
	for i, w := range want {
		if diff := nodes[i].Latitude - w; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("node %d latitude = %f, want %f", i, nodes[i].Latitude, w)
		}
	}
}

func TestDecodeWayNodesDoubleDelta(t *testing.T) {
	var buf []byte
	buf = append(buf, vbeUnsigned(3)...)

	buf = append(buf, vbeSigned(0)...) // lat 0.0
	buf = append(buf, vbeSigned(0)...) // lon 0.0

	// Second node: simple delta of +1 degree (no prior second-order term).
	buf = append(buf, vbeSigned(1000000)...)
	buf = append(buf, vbeSigned(1000000)...)

	// Third node: double-delta of 0 continues the established +1 trend.
	buf = append(buf, vbeSigned(0)...)
	buf = append(buf, vbeSigned(0)...)

	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{}
	nodes, err := d.decodeWayNodes(r, zeroOriginTile, true)
	if err != nil {
		t.Fatalf("decodeWayNodes failed: %v", err)
	}
	want := []float64{0.0, 1.0, 2.0}
	for i, w := range want {
		if diff := nodes[i].Latitude - w; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("node %d latitude = %f, want %f", i, nodes[i].Latitude, w)
		}
	}
}

func TestDecodeWayNodesRejectsTooFewNodes(t *testing.T) {
	buf := vbeUnsigned(1)
	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{}
	if _, err := d.decodeWayNodes(r, zeroOriginTile, false); err == nil {
		t.Errorf("expected error for node count below minimum of 2")
	}
}

func TestProcessPoisAddsTileOrigin(t *testing.T) {
	var buf []byte
	buf = append(buf, vbeSigned(1000000)...) // lat offset +1 degree
	buf = append(buf, vbeSigned(1000000)...) // lon offset +1 degree
	buf = append(buf, byte(0))                // special: layer 0, 0 tags
	buf = append(buf, byte(0))                // features: none

	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{}
	wide, _ := NewBoundingBox(-90, -180, 90, 180)

	pois, err := d.processPois(r, 1, zeroOriginTile, wide)
	if err != nil {
		t.Fatalf("processPois failed: %v", err)
	}
	if len(pois) != 1 {
		t.Fatalf("got %d pois, want 1", len(pois))
	}
	if diff := pois[0].Position.Latitude - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("poi latitude = %f, want 1.0 (tile origin + delta)", pois[0].Position.Latitude)
	}
	if diff := pois[0].Position.Longitude - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("poi longitude = %f, want 1.0 (tile origin + delta)", pois[0].Position.Longitude)
	}
}

func TestProcessPoisSelectorNamedDoesNotFilterPois(t *testing.T) {
	var buf []byte
	buf = append(buf, vbeSigned(0)...)
	buf = append(buf, vbeSigned(0)...)
	buf = append(buf, byte(0)) // special: layer 0, 0 tags
	buf = append(buf, byte(0)) // features: none, so no name tag

	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{selector: SelectorNamed}
	wide, _ := NewBoundingBox(-90, -180, 90, 180)

	pois, err := d.processPois(r, 1, zeroOriginTile, wide)
	if err != nil {
		t.Fatalf("processPois failed: %v", err)
	}
	if len(pois) != 1 {
		t.Fatalf("got %d pois under SelectorNamed, want 1 (POIs are never selector-filtered)", len(pois))
	}
}

func TestProcessWaysLabelPositionIsOffsetFromFirstNode(t *testing.T) {
	var body []byte
	body = append(body, byte(0xff), byte(0xff)) // tile bitmask, present but unused (useBitmask=false)
	body = append(body, byte(0))                // special: layer 0, 0 tags
	body = append(body, byte(wayFeatureLabelPosition))
	body = append(body, vbeSigned(500000)...) // label lat offset: +0.5 degree
	body = append(body, vbeSigned(500000)...) // label lon offset: +0.5 degree
	body = append(body, vbeUnsigned(1)...)    // coordinate ring count
	body = append(body, vbeUnsigned(2)...)    // ring node count
	body = append(body, vbeSigned(0)...)      // first node: tile origin exactly
	body = append(body, vbeSigned(0)...)
	body = append(body, vbeSigned(1000000)...) // second node: +1 degree each axis
	body = append(body, vbeSigned(1000000)...)

	var buf []byte
	buf = append(buf, vbeUnsigned(int64(len(body)))...)
	buf = append(buf, body...)

	r := newBufferFromBytes(t, buf)
	d := &blockDecoder{}
	wide, _ := NewBoundingBox(-90, -180, 90, 180)

	ways, err := d.processWays(r, 1, zeroOriginTile, wide, 0, false)
	if err != nil {
		t.Fatalf("processWays failed: %v", err)
	}
	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	label := ways[0].LabelPosition
	if label == nil {
		t.Fatalf("expected a label position")
	}
	firstNode := ways[0].WayNodes[0][0]
	wantLat, wantLon := firstNode.Latitude+0.5, firstNode.Longitude+0.5
	if diff := label.Latitude - wantLat; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("label latitude = %f, want %f (first node + offset)", label.Latitude, wantLat)
	}
	if diff := label.Longitude - wantLon; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("label longitude = %f, want %f (first node + offset)", label.Longitude, wantLon)
	}
}

func TestHasLabelTag(t *testing.T) {
	if hasLabelTag(nil) {
		t.Errorf("expected no label tag for empty tag set")
	}
	if !hasLabelTag([]Tag{{Key: tagKeyName, Value: "Main St"}}) {
		t.Errorf("expected name tag to count as a label tag")
	}
	if !hasLabelTag([]Tag{{Key: tagKeyRef, Value: "A1"}}) {
		t.Errorf("expected ref tag to count as a label tag")
	}
	if hasLabelTag([]Tag{{Key: "highway", Value: "residential"}}) {
		t.Errorf("expected an unrelated tag to not count as a label tag")
	}
}

func TestWayIntersectsBbox(t *testing.T) {
	bbox, _ := NewBoundingBox(0, 0, 1, 1)
	inside := Way{WayNodes: [][]LatLong{{{Latitude: 0.5, Longitude: 0.5}}}}
	outside := Way{WayNodes: [][]LatLong{{{Latitude: 50, Longitude: 50}}}}

	if !wayIntersectsBbox(inside, bbox, 0) {
		t.Errorf("expected way inside the box to intersect")
	}
	if wayIntersectsBbox(outside, bbox, 0) {
		t.Errorf("expected way far outside the box to not intersect")
	}
}
