package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/bpack/pkg/format"
	"github.com/eunmann/bpack/pkg/sysmem"
)

// BlockedName is the registered name of the block-splitting compressor.
const BlockedName = "blocked"

// DefaultBlockSize is the block size used when none is configured. Many
// native compressors cannot address buffers beyond 2 GiB.
const DefaultBlockSize = 1 << 30

// MaxBlockSize bounds the configurable block size.
const MaxBlockSize = math.MaxInt32

// Blocked splits a buffer into fixed-size blocks, compresses each block
// independently with an inner codec, and concatenates the results.
//
// Wire layout (big-endian):
//
//	count   u32
//	count × { length u32, compressed bytes }
//
// An empty input is stored as exactly one empty block. When shuffle is
// enabled each block is byte-transposed by typesize before compression,
// which groups same-significance bytes of numeric elements together.
type Blocked struct {
	inner     Codec
	innerName string
	level     int
	shuffle   bool
	typesize  int
	blockSize int
}

// BlockedOptions configures a Blocked codec.
type BlockedOptions struct {
	// Inner is the name of the per-block compressor (default "zstd").
	Inner string
	// Level is passed to the inner compressor; 0 keeps its default.
	Level int
	// Shuffle enables byte transposition by TypeSize.
	Shuffle bool
	// TypeSize is the element width used by Shuffle (default 1).
	TypeSize int
	// BlockSize is the uncompressed size of each block (default 1 GiB).
	BlockSize int
}

// NewBlocked returns a block-splitting codec.
func NewBlocked(opts BlockedOptions) (*Blocked, error) {
	if opts.Inner == "" {
		opts.Inner = ZstdName
	}
	if opts.TypeSize <= 0 {
		opts.TypeSize = 1
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.BlockSize > MaxBlockSize {
		return nil, format.NewConfigurationError("codec %q: block size %d exceeds %d", BlockedName, opts.BlockSize, MaxBlockSize)
	}
	if opts.Inner == BlockedName || opts.Inner == ChainName {
		return nil, format.NewConfigurationError("codec %q: inner codec %q is not a compressor", BlockedName, opts.Inner)
	}

	innerCfg := format.NewCodecConfig(opts.Inner)
	if opts.Level != 0 {
		innerCfg[levelKey(opts.Inner)] = opts.Level
	}
	inner, err := New(innerCfg)
	if err != nil {
		return nil, err
	}

	return &Blocked{
		inner:     inner,
		innerName: opts.Inner,
		level:     opts.Level,
		shuffle:   opts.Shuffle,
		typesize:  opts.TypeSize,
		blockSize: opts.BlockSize,
	}, nil
}

func newBlockedFromConfig(cfg format.CodecConfig) (Codec, error) {
	inner, err := cfg.String("inner", ZstdName)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Int("level", 0)
	if err != nil {
		return nil, err
	}
	shuffle, err := intParam(cfg, "shuffle", 0, 0, 1)
	if err != nil {
		return nil, err
	}
	typesize, err := intParam(cfg, "typesize", 1, 1, 1<<16)
	if err != nil {
		return nil, err
	}
	blockSize, err := intParam(cfg, "blocksize", DefaultBlockSize, 1, MaxBlockSize)
	if err != nil {
		return nil, err
	}
	return NewBlocked(BlockedOptions{
		Inner:     inner,
		Level:     level,
		Shuffle:   shuffle == 1,
		TypeSize:  typesize,
		BlockSize: blockSize,
	})
}

// levelKey names the effort parameter of an inner compressor.
func levelKey(inner string) string {
	if inner == BrotliName {
		return "quality"
	}
	return "level"
}

// splitBlocks slices buf into views of at most size bytes. An empty buffer
// yields one empty block.
func splitBlocks(buf []byte, size int) [][]byte {
	if len(buf) == 0 {
		return [][]byte{buf[:0:0]}
	}
	blocks := make([][]byte, 0, (len(buf)+size-1)/size)
	for start := 0; start < len(buf); start += size {
		end := min(start+size, len(buf))
		blocks = append(blocks, buf[start:end:end])
	}
	return blocks
}

// workers bounds block parallelism by CPUs and by memory. Each worker
// holds a raw and a compressed block.
func (c *Blocked) workers(n int) int {
	return sysmem.Workers(2 * uint64(min(n, c.blockSize)))
}

// Encode compresses src block by block. Blocks are compressed concurrently.
func (c *Blocked) Encode(src []byte) ([]byte, error) {
	blocks := splitBlocks(src, c.blockSize)
	compressed := make([][]byte, len(blocks))

	var g errgroup.Group
	g.SetLimit(c.workers(len(src)))
	for i, block := range blocks {
		g.Go(func() error {
			if c.shuffle {
				block = shuffleBytes(block, c.typesize)
			}
			out, err := c.inner.Encode(block)
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			if uint64(len(out)) > math.MaxUint32 {
				return fmt.Errorf("block %d: compressed to %d bytes, exceeds 4 GiB", i, len(out))
			}
			compressed[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 4
	for _, b := range compressed {
		total += 4 + len(b)
	}
	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(len(compressed)))
	for _, b := range compressed {
		out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

// Decode reverses Encode, concatenating the decoded blocks in order.
func (c *Blocked) Decode(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("blocked decode: %d bytes is too short for a block count", len(src))
	}
	count := int(binary.BigEndian.Uint32(src[0:4]))
	pos := 4
	blocks := make([][]byte, 0, min(count, len(src)/4))
	for i := range count {
		if pos+4 > len(src) {
			return nil, fmt.Errorf("blocked decode: truncated length of block %d", i)
		}
		n := int(binary.BigEndian.Uint32(src[pos : pos+4]))
		pos += 4
		if pos+n > len(src) {
			return nil, fmt.Errorf("blocked decode: block %d needs %d bytes, %d remain", i, n, len(src)-pos)
		}
		blocks = append(blocks, src[pos:pos+n])
		pos += n
	}
	if pos != len(src) {
		return nil, fmt.Errorf("blocked decode: %d trailing bytes", len(src)-pos)
	}

	decoded := make([][]byte, len(blocks))
	var g errgroup.Group
	g.SetLimit(c.workers(c.blockSize))
	for i, block := range blocks {
		g.Go(func() error {
			out, err := c.inner.Decode(block)
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			if c.shuffle {
				out = unshuffleBytes(out, c.typesize)
			}
			decoded[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range decoded {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range decoded {
		out = append(out, b...)
	}
	return out, nil
}

func (c *Blocked) Config() format.CodecConfig {
	shuffle := 0
	if c.shuffle {
		shuffle = 1
	}
	return format.NewCodecConfig(BlockedName,
		"inner", c.innerName,
		"level", c.level,
		"shuffle", shuffle,
		"typesize", c.typesize,
		"blocksize", c.blockSize,
	)
}

// shuffleBytes groups byte position 0 of every element first, then byte
// position 1, and so on. Trailing bytes that do not fill an element are
// copied unchanged.
func shuffleBytes(data []byte, typesize int) []byte {
	if typesize <= 1 {
		return data
	}
	groups := len(data) / typesize
	out := make([]byte, len(data))
	for i := range groups {
		for j := range typesize {
			out[j*groups+i] = data[i*typesize+j]
		}
	}
	copy(out[groups*typesize:], data[groups*typesize:])
	return out
}

// unshuffleBytes reverses shuffleBytes.
func unshuffleBytes(data []byte, typesize int) []byte {
	if typesize <= 1 {
		return data
	}
	groups := len(data) / typesize
	out := make([]byte, len(data))
	for i := range groups {
		for j := range typesize {
			out[i*typesize+j] = data[j*groups+i]
		}
	}
	copy(out[groups*typesize:], data[groups*typesize:])
	return out
}
