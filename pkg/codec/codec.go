// Package codec implements the byte-in/byte-out transforms applied to
// container buffers: pass-through, whole-buffer compressors, a
// block-splitting compressor, chains, and adapters for externally
// registered codecs.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eunmann/bpack/pkg/format"
)

// Codec transforms buffer bytes. Decode(Encode(b)) must equal b for every b,
// including the empty slice. Implementations are safe for concurrent use.
type Codec interface {
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
	// Config returns a configuration that New turns back into an
	// equivalent codec.
	Config() format.CodecConfig
}

// Factory builds a codec from its configuration.
type Factory func(cfg format.CodecConfig) (Codec, error)

// Registry maps codec names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtins = NewRegistry()

func init() {
	builtins.Register(NullName, newNullFromConfig)
	builtins.Register(GzipName, newGzipFromConfig)
	builtins.Register(ZlibName, newZlibFromConfig)
	builtins.Register(ZstdName, newZstdFromConfig)
	builtins.Register(LZ4Name, newLZ4FromConfig)
	builtins.Register(BrotliName, newBrotliFromConfig)
	builtins.Register(BlockedName, newBlockedFromConfig)
	builtins.Register(ChainName, newChainFromConfig)
	builtins.Register(ExternalName, newExternalFromConfig)
}

// Names returns the names of the built-in codecs.
func Names() []string {
	return builtins.Names()
}

// New builds a codec from its configuration. Built-in names are tried first,
// then the external registry. Unknown names fail with a ConfigurationError.
func New(cfg format.CodecConfig) (Codec, error) {
	name := cfg.ID()
	if name == "" {
		return nil, format.NewConfigurationError("codec config %v has no id", map[string]any(cfg))
	}
	if f, ok := builtins.Lookup(name); ok {
		return f(cfg)
	}
	if f, ok := external.Lookup(name); ok {
		return wrapExternal(name, cfg, f)
	}
	return nil, format.NewConfigurationError("unknown codec %q", name)
}

// Named builds a default-configured codec.
func Named(name string) (Codec, error) {
	return New(format.CodecConfig{"id": name})
}

// MustNew is like New but panics on error. It is intended for tests and
// package-level variables.
func MustNew(cfg format.CodecConfig) Codec {
	c, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("codec: %v", err))
	}
	return c
}

// DecodeAll reverses a pipeline recorded in an index entry: the codecs are
// rebuilt from their configs and applied in reverse order.
func DecodeAll(src []byte, configs []format.CodecConfig) ([]byte, error) {
	codecs := make([]Codec, len(configs))
	for i, cfg := range configs {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		codecs[i] = c
	}
	out := src
	for i := len(codecs) - 1; i >= 0; i-- {
		var err error
		out, err = codecs[i].Decode(out)
		if err != nil {
			return nil, fmt.Errorf("decode with %s: %w", configs[i].ID(), err)
		}
	}
	return out, nil
}

func intParam(cfg format.CodecConfig, key string, def, lo, hi int) (int, error) {
	v, err := cfg.Int(key, def)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, format.NewConfigurationError("codec %q: %s %d out of range [%d, %d]", cfg.ID(), key, v, lo, hi)
	}
	return v, nil
}
