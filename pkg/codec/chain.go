package codec

import (
	"fmt"

	"github.com/eunmann/bpack/pkg/format"
)

// ChainName is the registered name of the chain codec.
const ChainName = "chain"

// Chain applies codecs in sequence on encode and in reverse on decode.
type Chain struct {
	codecs []Codec
}

// NewChain returns a chain of codecs. Nested chains are flattened.
func NewChain(codecs ...Codec) *Chain {
	flat := make([]Codec, 0, len(codecs))
	for _, c := range codecs {
		if inner, ok := c.(*Chain); ok {
			flat = append(flat, inner.codecs...)
			continue
		}
		flat = append(flat, c)
	}
	return &Chain{codecs: flat}
}

func newChainFromConfig(cfg format.CodecConfig) (Codec, error) {
	configs, err := cfg.List("codecs")
	if err != nil {
		return nil, err
	}
	codecs := make([]Codec, len(configs))
	for i, sub := range configs {
		c, err := New(sub)
		if err != nil {
			return nil, fmt.Errorf("chain element %d: %w", i, err)
		}
		codecs[i] = c
	}
	return NewChain(codecs...), nil
}

// Codecs returns the chain elements in encode order.
func (c *Chain) Codecs() []Codec {
	return append([]Codec(nil), c.codecs...)
}

func (c *Chain) Encode(src []byte) ([]byte, error) {
	out := src
	for _, cc := range c.codecs {
		var err error
		if out, err = cc.Encode(out); err != nil {
			return nil, fmt.Errorf("encode with %s: %w", cc.Config().ID(), err)
		}
	}
	return out, nil
}

func (c *Chain) Decode(src []byte) ([]byte, error) {
	out := src
	for i := len(c.codecs) - 1; i >= 0; i-- {
		var err error
		if out, err = c.codecs[i].Decode(out); err != nil {
			return nil, fmt.Errorf("decode with %s: %w", c.codecs[i].Config().ID(), err)
		}
	}
	return out, nil
}

func (c *Chain) Config() format.CodecConfig {
	configs := make([]format.CodecConfig, len(c.codecs))
	for i, cc := range c.codecs {
		configs[i] = cc.Config()
	}
	return format.NewCodecConfig(ChainName, "codecs", configs)
}
