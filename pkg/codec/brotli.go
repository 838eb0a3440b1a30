package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/eunmann/bpack/pkg/format"
)

// BrotliName is the registered name of the brotli codec.
const BrotliName = "brotli"

// DefaultBrotliQuality is the brotli quality used when none is configured.
const DefaultBrotliQuality = 6

// Brotli compresses the whole buffer as one brotli stream.
type Brotli struct {
	quality int
}

// NewBrotli returns a brotli codec at the given quality (0-11).
func NewBrotli(quality int) (*Brotli, error) {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		return nil, format.NewConfigurationError("codec %q: quality %d out of range [0, 11]", BrotliName, quality)
	}
	return &Brotli{quality: quality}, nil
}

func newBrotliFromConfig(cfg format.CodecConfig) (Codec, error) {
	quality, err := cfg.Int("quality", DefaultBrotliQuality)
	if err != nil {
		return nil, err
	}
	return NewBrotli(quality)
}

// Encode compresses src.
func (c *Brotli) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.quality)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli finish: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses src.
func (c *Brotli) Decode(src []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, fmt.Errorf("brotli decompress: %w", err)
	}
	return out, nil
}

func (c *Brotli) Config() format.CodecConfig {
	return format.NewCodecConfig(BrotliName, "quality", c.quality)
}
