package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/eunmann/bpack/pkg/format"
)

// ZstdName is the registered name of the zstd codec.
const ZstdName = "zstd"

// DefaultZstdLevel is the zstd level used when none is configured.
const DefaultZstdLevel = 3

// zstdDecoder is shared; zstd.Decoder is safe for concurrent DecodeAll.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd compresses the whole buffer into one zstd frame.
type Zstd struct {
	level   int
	encoder *zstd.Encoder
}

// NewZstd returns a zstd codec. Levels follow the zstd command line (1-22)
// and are mapped onto the nearest encoder speed.
func NewZstd(level int) (*Zstd, error) {
	if level < 1 || level > 22 {
		return nil, format.NewConfigurationError("codec %q: level %d out of range [1, 22]", ZstdName, level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Zstd{level: level, encoder: enc}, nil
}

func newZstdFromConfig(cfg format.CodecConfig) (Codec, error) {
	level, err := cfg.Int("level", DefaultZstdLevel)
	if err != nil {
		return nil, err
	}
	return NewZstd(level)
}

// Encode compresses src.
func (c *Zstd) Encode(src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, nil), nil
}

// Decode decompresses src.
func (c *Zstd) Decode(src []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (c *Zstd) Config() format.CodecConfig {
	return format.NewCodecConfig(ZstdName, "level", c.level)
}
