package mapfile

import (
	"errors"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	indexEntriesPerBlock = 128
	sizeOfIndexBlock     = indexEntriesPerBlock * bytesPerIndexEntry

	// bitmaskIndexOffset keeps the low 35 bits of a 40-bit index entry as
	// the byte offset of a block within its sub-file; bits 35..38 are not
	// part of the decoded offset.
	bitmaskIndexOffset = 0x7FFFFFFFF
	// bitmaskIndexWater marks bit 39 of a 40-bit index entry: the block is
	// known to contain only water.
	bitmaskIndexWater = 0x8000000000
)

// indexCacheKey identifies a cached 128-entry index block. Equality is
// defined over the owning sub-file's identity and the block number within
// it, matching the reference cache's key semantics.
type indexCacheKey struct {
	subFile subFileIdentity
	block   int64
}

// indexEntry is one decoded 40-bit block-index word.
type indexEntry struct {
	Offset int64
	Water  bool
}

// indexCache resolves block numbers to their decoded index entries,
// fetching and caching 128-entry (640-byte) index blocks on miss.
type indexCache struct {
	blocks *lru.Cache[indexCacheKey, []byte]
	source byteSource
	log    *zap.Logger
}

func newIndexCache(source byteSource, size int, log *zap.Logger) (*indexCache, error) {
	c, err := lru.New[indexCacheKey, []byte](size)
	if err != nil {
		return nil, &ErrIO{Op: "allocate index cache", Err: err}
	}
	return &indexCache{blocks: c, source: source, log: log}, nil
}

// get resolves the index entry for blockNumber within sub. A block number
// outside [0, sub.NumberOfBlocks) is an ErrInvalidRange. An index block that
// cannot be read in full because the file ends early yields a zero entry
// rather than an error: the reference implementation treats a truncated
// trailing index as implicitly empty rather than corrupt.
func (c *indexCache) get(sub *SubFileParameter, blockNumber int64) (indexEntry, error) {
	if blockNumber < 0 || blockNumber >= sub.NumberOfBlocks {
		return indexEntry{}, &ErrInvalidRange{Reason: "block number out of range"}
	}

	indexBlockNumber := blockNumber / indexEntriesPerBlock
	key := indexCacheKey{subFile: sub.cacheKey(), block: indexBlockNumber}

	block, ok := c.blocks.Get(key)
	if !ok {
		var err error
		block, ok, err = c.loadBlock(sub, indexBlockNumber)
		if err != nil {
			return indexEntry{}, err
		}
		if !ok {
			return indexEntry{}, nil
		}
		c.blocks.Add(key, block)
	}

	entryInBlock := blockNumber % indexEntriesPerBlock
	addr := int(entryInBlock) * bytesPerIndexEntry
	if addr+bytesPerIndexEntry > len(block) {
		return indexEntry{}, nil
	}

	word := getFiveBytesLong(block, addr)
	return indexEntry{
		Offset: word & bitmaskIndexOffset,
		Water:  word&bitmaskIndexWater != 0,
	}, nil
}

func (c *indexCache) loadBlock(sub *SubFileParameter, indexBlockNumber int64) ([]byte, bool, error) {
	indexBlockPosition := sub.IndexStartAddress + indexBlockNumber*sizeOfIndexBlock
	remainingIndexSize := sub.IndexEndAddress - indexBlockPosition
	if remainingIndexSize <= 0 {
		return nil, false, nil
	}
	length := sizeOfIndexBlock
	if int64(length) > remainingIndexSize {
		length = int(remainingIndexSize)
	}

	buf := make([]byte, length)
	n, err := c.source.ReadAt(buf, indexBlockPosition)
	if err != nil {
		if n < length && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			if c.log != nil {
				c.log.Debug("short read loading index block, treating as empty",
					zap.Int64("block", indexBlockNumber), zap.Error(err))
			}
			return nil, false, nil
		}
		return nil, false, &ErrIO{Op: "read index block", Err: err}
	}
	return buf, true, nil
}
