package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/eunmann/bpack/pkg/format"
)

// LZ4Name is the registered name of the LZ4 codec.
const LZ4Name = "lz4"

// LZ4 compresses the whole buffer as one LZ4 block, prefixed with the
// decoded length as a little-endian uint32 (the numcodecs LZ4 layout).
// Level 0 selects the fast compressor, levels 1-9 the HC compressor.
type LZ4 struct {
	level int
}

// NewLZ4 returns an LZ4 codec at the given level.
func NewLZ4(level int) (*LZ4, error) {
	if level < 0 || level > 9 {
		return nil, format.NewConfigurationError("codec %q: level %d out of range [0, 9]", LZ4Name, level)
	}
	return &LZ4{level: level}, nil
}

func newLZ4FromConfig(cfg format.CodecConfig) (Codec, error) {
	level, err := cfg.Int("level", 0)
	if err != nil {
		return nil, err
	}
	return NewLZ4(level)
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// Encode compresses src.
func (c *LZ4) Encode(src []byte) ([]byte, error) {
	if uint64(len(src)) > math.MaxUint32 {
		return nil, fmt.Errorf("lz4 compress: %d bytes exceeds block limit", len(src))
	}
	dst := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(dst[0:4], uint32(len(src)))
	if len(src) == 0 {
		return dst[:4], nil
	}

	var (
		n   int
		err error
	)
	if c.level == 0 {
		n, err = lz4.CompressBlock(src, dst[4:], nil)
	} else {
		n, err = lz4.CompressBlockHC(src, dst[4:], lz4Levels[c.level], nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// A zero length only happens with an undersized destination.
	if n == 0 {
		return nil, fmt.Errorf("lz4 compress: empty block for %d bytes", len(src))
	}
	return dst[:4+n], nil
}

// Decode decompresses src.
func (c *LZ4) Decode(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("lz4 decompress: %d bytes is too short for a size prefix", len(src))
	}
	size := int(binary.LittleEndian.Uint32(src[0:4]))
	dst := make([]byte, size)
	if size == 0 {
		return dst, nil
	}
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
	}
	return dst, nil
}

func (c *LZ4) Config() format.CodecConfig {
	return format.NewCodecConfig(LZ4Name, "level", c.level)
}
