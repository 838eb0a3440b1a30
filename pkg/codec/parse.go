package codec

import (
	"strconv"
	"strings"

	"github.com/eunmann/bpack/pkg/format"
)

// ParseConfig parses one compact codec spec of the form
// "name[:key=value,...]", e.g. "zstd:level=9" or "blocked:inner=lz4,shuffle=1".
// Integer-looking values become ints; everything else stays a string.
func ParseConfig(s string) (format.CodecConfig, error) {
	s = strings.TrimSpace(s)
	name, params, _ := strings.Cut(s, ":")
	if name == "" {
		return nil, format.NewConfigurationError("empty codec name in %q", s)
	}
	cfg := format.NewCodecConfig(name)
	if params == "" {
		return cfg, nil
	}
	for _, kv := range strings.Split(params, ",") {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || key == "id" {
			return nil, format.NewConfigurationError("invalid codec parameter %q in %q", kv, s)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.Atoi(value); err == nil {
			cfg[key] = n
		} else {
			cfg[key] = value
		}
	}
	return cfg, nil
}

// ParseSpec parses a compact codec spec into a codec. Chain elements are
// separated by "+", so "blocked:inner=lz4+gzip:level=1" compresses with the
// blocked codec and then gzip. An empty spec is the null codec.
func ParseSpec(s string) (Codec, error) {
	if strings.TrimSpace(s) == "" {
		return Null{}, nil
	}
	parts := strings.Split(s, "+")
	if len(parts) == 1 {
		cfg, err := ParseConfig(parts[0])
		if err != nil {
			return nil, err
		}
		return New(cfg)
	}
	codecs := make([]Codec, len(parts))
	for i, part := range parts {
		cfg, err := ParseConfig(part)
		if err != nil {
			return nil, err
		}
		if codecs[i], err = New(cfg); err != nil {
			return nil, err
		}
	}
	return NewChain(codecs...), nil
}
