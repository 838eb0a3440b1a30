package format

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// CodecConfig is a codec name plus its scalar parameters. The name is stored
// under "id", the same key numcodecs uses, so configs read from legacy files
// resolve without translation. A chain keeps its nested configs under
// "codecs".
type CodecConfig map[string]any

// NewCodecConfig returns a config for the named codec with the given
// key/value parameters.
func NewCodecConfig(id string, kv ...any) CodecConfig {
	cfg := CodecConfig{"id": id}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		cfg[key] = kv[i+1]
	}
	return cfg
}

// ID returns the codec name, or "" if the config has none.
func (c CodecConfig) ID() string {
	id, _ := c["id"].(string)
	return id
}

// Int returns an integer parameter, or def when it is absent.
func (c CodecConfig) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, NewConfigurationError("codec %q: parameter %q is %T, want integer", c.ID(), key, v)
	}
	return n, nil
}

// String returns a string parameter, or def when it is absent.
func (c CodecConfig) String(key, def string) (string, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", NewConfigurationError("codec %q: parameter %q is %T, want string", c.ID(), key, v)
	}
	return s, nil
}

// List returns a nested list of configs, as held by a chain.
func (c CodecConfig) List(key string) ([]CodecConfig, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch items := v.(type) {
	case []CodecConfig:
		return items, nil
	case []any:
		out := make([]CodecConfig, 0, len(items))
		for i, item := range items {
			cfg, ok := asCodecConfig(item)
			if !ok {
				return nil, NewConfigurationError("codec %q: %s[%d] is %T, want map", c.ID(), key, i, item)
			}
			out = append(out, cfg)
		}
		return out, nil
	case []map[string]any:
		out := make([]CodecConfig, len(items))
		for i, item := range items {
			out[i] = CodecConfig(item)
		}
		return out, nil
	default:
		return nil, NewConfigurationError("codec %q: parameter %q is %T, want list", c.ID(), key, v)
	}
}

// Pretty renders the config compactly, e.g. "zstd(level=3)".
func (c CodecConfig) Pretty() string {
	if c.ID() == "chain" {
		nested, err := c.List("codecs")
		if err == nil {
			return PrettyCodecs(nested)
		}
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return c.ID()
	}
	sort.Strings(keys)
	params := make([]string, len(keys))
	for i, k := range keys {
		params[i] = fmt.Sprintf("%s=%v", k, c[k])
	}
	return c.ID() + "(" + strings.Join(params, ", ") + ")"
}

// PrettyCodecs renders a codec pipeline, "" for a verbatim buffer.
func PrettyCodecs(codecs []CodecConfig) string {
	parts := make([]string, len(codecs))
	for i, c := range codecs {
		parts[i] = c.Pretty()
	}
	return strings.Join(parts, " > ")
}

func asCodecConfig(v any) (CodecConfig, bool) {
	switch m := v.(type) {
	case CodecConfig:
		return m, true
	case map[string]any:
		return CodecConfig(m), true
	case map[any]any:
		out := make(CodecConfig, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), n <= math.MaxInt
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), n <= math.MaxInt
	case float64:
		return int(n), n == math.Trunc(n)
	case float32:
		return int(n), float64(n) == math.Trunc(float64(n))
	default:
		return 0, false
	}
}

// BufferInfo is optional type and shape metadata for a buffer. It is used
// for listings only and never needed to read a buffer back.
type BufferInfo struct {
	Kind  string `cbor:"kind"`
	DType string `cbor:"dtype"`
	Shape []int  `cbor:"shape"`
}

// TypeString renders the element type, "i4" for an ndarray or
// "kind[dtype]" otherwise.
func (bi *BufferInfo) TypeString() string {
	if bi == nil {
		return ""
	}
	if bi.Kind == "" || bi.Kind == "ndarray" {
		return bi.DType
	}
	return bi.Kind + "[" + bi.DType + "]"
}

// ShapeString renders the shape as "2, 3".
func (bi *BufferInfo) ShapeString() string {
	if bi == nil {
		return ""
	}
	dims := make([]string, len(bi.Shape))
	for i, d := range bi.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return strings.Join(dims, ", ")
}

// Entry describes one stored buffer. Entries are immutable once written.
type Entry struct {
	Offset    uint64
	EncLength uint64
	DecLength uint64
	Hash      Hash // SHA-256 of the encoded bytes
	Info      *BufferInfo
	Codecs    []CodecConfig // applied in order on write; empty means verbatim
}

// End returns the offset just past the encoded bytes.
func (e Entry) End() uint64 {
	return e.Offset + e.EncLength
}

// Verbatim reports whether the buffer is stored without any codec.
func (e Entry) Verbatim() bool {
	return len(e.Codecs) == 0
}

// Index holds the stored entries and the logical buffer order. Refs[i] is
// the stored entry backing the i-th buffer the serializer wrote; several
// logical buffers share one entry when deduplication collapsed them.
type Index struct {
	Buffers []Entry
	Refs    []int
}

// Len returns the number of logical buffers.
func (ix *Index) Len() int {
	return len(ix.Refs)
}

// Logical returns the stored entry behind logical buffer i.
func (ix *Index) Logical(i int) Entry {
	return ix.Buffers[ix.Refs[i]]
}

// Validate checks that every logical reference names a stored entry.
func (ix *Index) Validate() error {
	for i, ref := range ix.Refs {
		if ref < 0 || ref >= len(ix.Buffers) {
			return NewFormatError("logical buffer %d references entry %d of %d", i, ref, len(ix.Buffers))
		}
	}
	return nil
}
