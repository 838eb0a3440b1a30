package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/eunmann/bpack/pkg/format"
)

// Registered names of the deflate-family codecs. They match the numcodecs
// ids so legacy files resolve directly.
const (
	GzipName = "gzip"
	ZlibName = "zlib"
)

// DefaultDeflateLevel is the compression level used when none is configured.
const DefaultDeflateLevel = 9

// Gzip compresses the whole buffer into a single gzip member.
type Gzip struct {
	level int
}

// NewGzip returns a gzip codec at the given level (0-9, or -1 for the
// library default).
func NewGzip(level int) (*Gzip, error) {
	if level < gzip.DefaultCompression || level > gzip.BestCompression {
		return nil, format.NewConfigurationError("codec %q: level %d out of range", GzipName, level)
	}
	return &Gzip{level: level}, nil
}

func newGzipFromConfig(cfg format.CodecConfig) (Codec, error) {
	level, err := cfg.Int("level", DefaultDeflateLevel)
	if err != nil {
		return nil, err
	}
	return NewGzip(level)
}

// Encode compresses src.
func (c *Gzip) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip finish: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses src.
func (c *Gzip) Decode(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return out, nil
}

func (c *Gzip) Config() format.CodecConfig {
	return format.NewCodecConfig(GzipName, "level", c.level)
}

// Zlib compresses the whole buffer into a zlib stream.
type Zlib struct {
	level int
}

// NewZlib returns a zlib codec at the given level (0-9, or -1 for the
// library default).
func NewZlib(level int) (*Zlib, error) {
	if level < zlib.DefaultCompression || level > zlib.BestCompression {
		return nil, format.NewConfigurationError("codec %q: level %d out of range", ZlibName, level)
	}
	return &Zlib{level: level}, nil
}

func newZlibFromConfig(cfg format.CodecConfig) (Codec, error) {
	level, err := cfg.Int("level", DefaultDeflateLevel)
	if err != nil {
		return nil, err
	}
	return NewZlib(level)
}

// Encode compresses src.
func (c *Zlib) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib finish: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses src.
func (c *Zlib) Decode(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return out, nil
}

func (c *Zlib) Config() format.CodecConfig {
	return format.NewCodecConfig(ZlibName, "level", c.level)
}
