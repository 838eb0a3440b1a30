package codec

import (
	"fmt"

	"github.com/eunmann/bpack/pkg/format"
)

// BufferDescriptor describes a buffer about to be encoded. Selectors use it
// to pick a codec per buffer.
type BufferDescriptor struct {
	Data []byte
	Info *format.BufferInfo
}

// Selector picks the codec for a buffer. Choose may return anything Resolve
// accepts; returning nil skips the step for that buffer.
type Selector interface {
	Choose(desc BufferDescriptor) (any, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(desc BufferDescriptor) (any, error)

func (f SelectorFunc) Choose(desc BufferDescriptor) (any, error) {
	return f(desc)
}

// Resolve turns a codec description into a Codec. Accepted forms:
//
//   - nil: the null codec
//   - Codec: returned as is
//   - string: a codec name or compact spec, see ParseSpec
//   - format.CodecConfig or map[string]any: a codec configuration
//   - []any, []string, []format.CodecConfig, []Codec: a chain
//
// Selectors are not codecs; use a Pipeline for those.
func Resolve(spec any) (Codec, error) {
	switch s := spec.(type) {
	case nil:
		return Null{}, nil
	case Codec:
		return s, nil
	case string:
		return ParseSpec(s)
	case format.CodecConfig:
		return New(s)
	case map[string]any:
		return New(format.CodecConfig(s))
	case []Codec:
		return NewChain(s...), nil
	case []string:
		return resolveList(len(s), func(i int) any { return s[i] })
	case []format.CodecConfig:
		return resolveList(len(s), func(i int) any { return s[i] })
	case []any:
		return resolveList(len(s), func(i int) any { return s[i] })
	case Selector:
		return nil, format.NewConfigurationError("codec selector %T cannot be resolved without a buffer", spec)
	default:
		return nil, format.NewConfigurationError("cannot resolve codec from %T", spec)
	}
}

func resolveList(n int, at func(int) any) (Codec, error) {
	codecs := make([]Codec, 0, n)
	for i := range n {
		c, err := Resolve(at(i))
		if err != nil {
			return nil, fmt.Errorf("codec %d: %w", i, err)
		}
		codecs = append(codecs, c)
	}
	return NewChain(codecs...), nil
}

// Pipeline is the ordered list of codec steps a writer applies to each
// buffer. A step is either a fixed codec or a Selector consulted per buffer.
type Pipeline struct {
	steps []pipelineStep
}

type pipelineStep struct {
	codec    Codec
	selector Selector
}

// NewPipeline builds a pipeline from codec descriptions (see Resolve) and
// selectors. Fixed steps are resolved eagerly so configuration errors
// surface before any buffer is written.
func NewPipeline(specs ...any) (*Pipeline, error) {
	p := &Pipeline{}
	for i, spec := range specs {
		switch s := spec.(type) {
		case Selector:
			p.steps = append(p.steps, pipelineStep{selector: s})
		default:
			c, err := Resolve(spec)
			if err != nil {
				return nil, fmt.Errorf("codec step %d: %w", i, err)
			}
			p.steps = append(p.steps, pipelineStep{codec: c})
		}
	}
	return p, nil
}

// Empty reports whether the pipeline has no steps.
func (p *Pipeline) Empty() bool {
	return p == nil || len(p.steps) == 0
}

// Resolve returns the codecs to apply to one buffer, in encode order. Chains
// are flattened and null codecs dropped, so an empty result means the buffer
// is stored verbatim.
func (p *Pipeline) Resolve(desc BufferDescriptor) ([]Codec, error) {
	if p == nil {
		return nil, nil
	}
	var out []Codec
	for i, step := range p.steps {
		c := step.codec
		if step.selector != nil {
			choice, err := step.selector.Choose(desc)
			if err != nil {
				return nil, fmt.Errorf("codec selector %d: %w", i, err)
			}
			if choice == nil {
				continue
			}
			if c, err = Resolve(choice); err != nil {
				return nil, fmt.Errorf("codec selector %d: %w", i, err)
			}
		}
		out = appendFlat(out, c)
	}
	return out, nil
}

func appendFlat(dst []Codec, c Codec) []Codec {
	switch cc := c.(type) {
	case Null, *Null:
		return dst
	case *Chain:
		for _, inner := range cc.codecs {
			dst = appendFlat(dst, inner)
		}
		return dst
	default:
		return append(dst, c)
	}
}
