package codec

import (
	"maps"

	"github.com/eunmann/bpack/pkg/format"
)

// ExternalName is the registered name of the external codec adapter.
const ExternalName = "external"

// external holds codecs registered by callers. Their configurations are
// recorded under ExternalName so that a file written with an external codec
// names the adapter and the wrapped codec.
var external = NewRegistry()

// RegisterExternal makes a codec from outside this package available by
// name. Built-in names take precedence over external ones in New.
func RegisterExternal(name string, f Factory) {
	external.Register(name, f)
}

// ExternalNames returns the names of the registered external codecs.
func ExternalNames() []string {
	return external.Names()
}

// External adapts an externally registered codec. Its configuration is the
// wrapped codec's parameters plus "id": "external" and "codec": name.
type External struct {
	name  string
	inner Codec
}

func wrapExternal(name string, cfg format.CodecConfig, f Factory) (Codec, error) {
	params := maps.Clone(cfg)
	params["id"] = name
	delete(params, "codec")
	inner, err := f(params)
	if err != nil {
		return nil, err
	}
	return &External{name: name, inner: inner}, nil
}

func newExternalFromConfig(cfg format.CodecConfig) (Codec, error) {
	name, err := cfg.String("codec", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, format.NewConfigurationError("codec %q: missing \"codec\" parameter", ExternalName)
	}
	f, ok := external.Lookup(name)
	if !ok {
		return nil, format.NewConfigurationError("unknown external codec %q", name)
	}
	return wrapExternal(name, cfg, f)
}

// Name returns the registered name of the wrapped codec.
func (e *External) Name() string {
	return e.name
}

func (e *External) Encode(src []byte) ([]byte, error) {
	return e.inner.Encode(src)
}

func (e *External) Decode(src []byte) ([]byte, error) {
	return e.inner.Decode(src)
}

func (e *External) Config() format.CodecConfig {
	cfg := maps.Clone(e.inner.Config())
	if cfg == nil {
		cfg = format.CodecConfig{}
	}
	cfg["id"] = ExternalName
	cfg["codec"] = e.name
	return cfg
}
