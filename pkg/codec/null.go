package codec

import "github.com/eunmann/bpack/pkg/format"

// NullName is the registered name of the pass-through codec.
const NullName = "null"

// Null is the identity codec.
type Null struct{}

func newNullFromConfig(format.CodecConfig) (Codec, error) {
	return Null{}, nil
}

// Encode returns src unchanged.
func (Null) Encode(src []byte) ([]byte, error) { return src, nil }

// Decode returns src unchanged.
func (Null) Decode(src []byte) ([]byte, error) { return src, nil }

func (Null) Config() format.CodecConfig {
	return format.NewCodecConfig(NullName)
}
