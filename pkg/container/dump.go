package container

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/eunmann/bpack/pkg/fileutil"
	"github.com/eunmann/bpack/pkg/format"
)

// DumpOptions configures Dump.
type DumpOptions struct {
	// Mappable writes page-aligned verbatim buffers and ignores Codecs.
	Mappable bool
	// Codecs compress every buffer when the file is not mappable. Nil
	// means gzip; an empty slice stores buffers verbatim.
	Codecs []any
	// Deduplicate stores byte-identical buffers once.
	Deduplicate bool
	Logger      *zerolog.Logger
}

// Dump writes obj to path in one call.
func Dump(obj any, path string, ser Serializer, opts DumpOptions) error {
	wopts := WriterOptions{Deduplicate: opts.Deduplicate, Logger: opts.Logger}
	switch {
	case opts.Mappable:
		wopts.Align = true
	case opts.Codecs == nil:
		wopts.Codecs = []any{"gzip"}
	default:
		wopts.Codecs = opts.Codecs
	}

	w, err := NewWriter(path, wopts)
	if err != nil {
		return err
	}
	if err := w.Dump(obj, ser); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Load reads the object stored at path. The reader is closed before Load
// returns, so buffers are always copied out of the map and opts.Direct is
// ignored.
func Load(path string, deser Deserializer, opts ReaderOptions) (any, error) {
	opts.Direct = DirectOff
	r, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Load(deser)
}

// Status classifies a path for Probe.
type Status int

const (
	// Missing means nothing exists at the path.
	Missing Status = iota
	// Invalid means the file exists but is not a readable container.
	Invalid
	// Valid means the file opened and its index verified.
	Valid
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// FileInfo is the result of Probe.
type FileInfo struct {
	Status Status
	Size   int64
	Err    error // why the file is Invalid
}

// Probe reports whether path holds a valid container without loading it.
func Probe(path string) FileInfo {
	if !fileutil.Exists(path) {
		return FileInfo{Status: Missing}
	}
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{Status: Invalid, Err: err}
	}
	if st.IsDir() {
		return FileInfo{Status: Invalid, Size: st.Size(), Err: format.NewFormatError("%s is a directory", path)}
	}
	if !fileutil.IsNonEmpty(path) {
		return FileInfo{Status: Invalid, Err: format.NewFormatError("%s is empty", path)}
	}

	nop := zerolog.Nop()
	r, err := Open(path, ReaderOptions{Logger: &nop})
	if err != nil {
		return FileInfo{Status: Invalid, Size: st.Size(), Err: err}
	}
	r.Close()
	return FileInfo{Status: Valid, Size: st.Size()}
}
