package mapfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildMinimalHeader constructs a single-sub-file header with no optional
// fields and empty tag dictionaries, returning its bytes and the declared
// total file size so the file_size field round-trips correctly.
func buildMinimalHeader(t *testing.T) ([]byte, int64) {
	t.Helper()

	var remaining bytes.Buffer
	write32 := func(v int32) { binary.Write(&remaining, binary.BigEndian, v) }
	write64 := func(v int64) { binary.Write(&remaining, binary.BigEndian, v) }
	write16 := func(v int16) { binary.Write(&remaining, binary.BigEndian, v) }
	writeByte := func(v byte) { remaining.WriteByte(v) }
	writeVBEString := func(s string) {
		writeByte(byte(len(s))) // fits in one VBE-U byte for short strings
		remaining.WriteString(s)
	}

	const headerLen = 24 // magic(20) + remaining-size field(4)
	const subFileStart = 97
	const subFileSize = 10
	const fileSize = subFileStart + subFileSize

	write32(5) // file_version
	write64(fileSize)
	write64(1600000000000) // map_date
	write32(-10000000)     // min lat
	write32(-10000000)     // min lon
	write32(10000000)      // max lat
	write32(10000000)      // max lon
	write16(256)            // tile_pixel_size
	writeVBEString(mercatorProjectionName)
	writeByte(0) // flags: no optional fields
	write16(0)   // poi tag count
	write16(0)   // way tag count
	writeByte(1) // number of sub-files
	writeByte(10) // base zoom level
	writeByte(0)  // zoom level min
	writeByte(10) // zoom level max
	write64(subFileStart)
	write64(subFileSize)

	var out bytes.Buffer
	out.WriteString(magicByte)
	binary.Write(&out, binary.BigEndian, int32(remaining.Len()))
	out.Write(remaining.Bytes())

	full := make([]byte, fileSize)
	copy(full, out.Bytes())
	return full, int64(fileSize)
}

func TestReadHeaderMinimalValidFile(t *testing.T) {
	data, fileSize := buildMinimalHeader(t)
	r := newReadBuffer(bytes.NewReader(data))

	h := newMapFileHeader(nil)
	if err := h.readHeader(r, fileSize); err != nil {
		t.Fatalf("readHeader failed: %v", err)
	}

	info := h.Info()
	if info.FileVersion != 5 {
		t.Errorf("FileVersion = %d, want 5", info.FileVersion)
	}
	if info.ProjectionName != mercatorProjectionName {
		t.Errorf("ProjectionName = %q, want %q", info.ProjectionName, mercatorProjectionName)
	}
	if h.zoomLevelMinimum != 0 || h.zoomLevelMaximum != 10 {
		t.Errorf("zoom range = [%d, %d], want [0, 10]", h.zoomLevelMinimum, h.zoomLevelMaximum)
	}

	sub := h.SubFileParameter(10)
	if sub == nil {
		t.Fatalf("expected a sub-file covering zoom 10")
	}
	if sub.BaseZoomLevel != 10 {
		t.Errorf("BaseZoomLevel = %d, want 10", sub.BaseZoomLevel)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, 64)
	copy(data, "not a mapsforge file")
	r := newReadBuffer(bytes.NewReader(data))

	h := newMapFileHeader(nil)
	err := h.readHeader(r, int64(len(data)))
	if err == nil {
		t.Fatalf("expected error for bad magic byte")
	}
	if _, ok := err.(*ErrInvalidMagic); !ok {
		t.Errorf("expected *ErrInvalidMagic, got %T: %v", err, err)
	}
}

func TestReadHeaderRejectsWrongFileSize(t *testing.T) {
	data, fileSize := buildMinimalHeader(t)
	r := newReadBuffer(bytes.NewReader(data))

	h := newMapFileHeader(nil)
	err := h.readHeader(r, fileSize+1)
	if err == nil {
		t.Fatalf("expected error for mismatched file size")
	}
}

func TestQueryZoomLevelClamps(t *testing.T) {
	data, fileSize := buildMinimalHeader(t)
	r := newReadBuffer(bytes.NewReader(data))

	h := newMapFileHeader(nil)
	if err := h.readHeader(r, fileSize); err != nil {
		t.Fatalf("readHeader failed: %v", err)
	}

	if got := h.QueryZoomLevel(99); got != h.zoomLevelMaximum {
		t.Errorf("QueryZoomLevel(99) = %d, want %d", got, h.zoomLevelMaximum)
	}
	if got := h.QueryZoomLevel(0); got != h.zoomLevelMinimum {
		t.Errorf("QueryZoomLevel(0) = %d, want %d", got, h.zoomLevelMinimum)
	}
}
