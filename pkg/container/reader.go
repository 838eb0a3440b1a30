package container

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"

	"github.com/eunmann/bpack/pkg/codec"
	"github.com/eunmann/bpack/pkg/format"
	"github.com/eunmann/bpack/pkg/logging"
)

// DirectMode selects whether verbatim buffers are returned as views into
// the memory map instead of copies.
type DirectMode int

const (
	// DirectOff copies every buffer out of the map.
	DirectOff DirectMode = iota
	// DirectOn returns zero-copy views and warns if the file was not
	// written to be mappable.
	DirectOn
	// DirectNoWarn is DirectOn without the warning.
	DirectNoWarn
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Direct DirectMode
	// SkipVerify disables the index and per-buffer hash checks.
	SkipVerify bool
	// Logger overrides the global logger.
	Logger *zerolog.Logger
}

// Reader gives access to the buffers of a container through a read-only
// memory map. After Open all state is immutable, so a Reader is safe for
// concurrent use until Close.
type Reader struct {
	path    string
	m       *mapping
	header  format.Header
	trailer format.Trailer
	index   *format.Index
	opts    ReaderOptions
	log     zerolog.Logger
	closed  atomic.Bool

	// exported holds the direct views behind slices yielded by Buffers and
	// Load. They keep the map alive past Close until ReleaseBuffers.
	mu       sync.Mutex
	exported []*View
}

// Open maps a container and parses its header, trailer and index.
// Structural problems are reported as *format.FormatError and a bad index
// hash as *format.IntegrityError.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		path: path,
		m:    m,
		opts: opts,
		log:  logging.Or(opts.Logger, "reader").With().Str("path", path).Logger(),
	}
	if err := r.init(); err != nil {
		m.closed.Store(true)
		m.release()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r.log.Debug().
		Uint16("version", r.header.Version).
		Str("flags", r.header.Flags.String()).
		Int("entries", len(r.index.Buffers)).
		Int("refs", r.index.Len()).
		Msg("opened container")
	return r, nil
}

func (r *Reader) init() error {
	data := r.m.data
	if len(data) < format.HeaderSize {
		return format.NewFormatError("file size %d too short for a header", len(data))
	}
	h, err := format.DecodeHeader(data[:format.HeaderSize])
	if err != nil {
		return err
	}
	if h.Flags.Has(format.FlagBigEndian) != cpu.IsBigEndian {
		return format.NewFormatError("payload byte order %s does not match host %s", byteOrder(h.Flags.Has(format.FlagBigEndian)), byteOrder(cpu.IsBigEndian))
	}
	if r.opts.Direct == DirectOn && !h.Flags.Has(format.FlagMappable) {
		r.log.Warn().Msg("direct mode requested but file is not mappable")
	}
	r.header = h

	pos, err := h.TrailerPosition()
	if err != nil {
		return err
	}
	if h.Length > int64(len(data)) {
		return format.NewFormatError("truncated file: header length %d, file size %d", h.Length, len(data))
	}
	t, err := format.DecodeTrailer(data[pos : pos+format.TrailerSize])
	if err != nil {
		return err
	}
	if t.Offset < format.HeaderSize || t.Offset > uint64(pos) || t.Offset+uint64(t.Length) > uint64(pos) {
		return format.NewFormatError("index [%d, +%d) outside buffer region [%d, %d)", t.Offset, t.Length, format.HeaderSize, pos)
	}
	r.trailer = t

	blob := r.indexBlob()
	if !r.opts.SkipVerify && format.SumHash(blob) != t.Hash {
		return format.NewIntegrityError("index hash mismatch")
	}
	ix, err := format.DecodeIndex(h.Version, blob)
	if err != nil {
		return err
	}
	r.index = ix
	return nil
}

func byteOrder(big bool) string {
	if big {
		return "big-endian"
	}
	return "little-endian"
}

func (r *Reader) indexBlob() []byte {
	return r.m.data[r.trailer.Offset : r.trailer.Offset+uint64(r.trailer.Length)]
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Header returns the file header.
func (r *Reader) Header() format.Header { return r.header }

// Trailer returns the file trailer.
func (r *Reader) Trailer() format.Trailer { return r.trailer }

// Entries returns the stored entries in file order.
func (r *Reader) Entries() []format.Entry {
	return r.index.Buffers
}

// Refs returns the stored entry number of each logical buffer.
func (r *Reader) Refs() []int {
	return r.index.Refs
}

// LogicalLen returns the number of logical buffers, duplicates included.
func (r *Reader) LogicalLen() int {
	return r.index.Len()
}

// IsMappable reports whether every stored buffer is verbatim, so that all
// of them can be read without decoding.
func (r *Reader) IsMappable() bool {
	for _, e := range r.index.Buffers {
		if !e.Verbatim() {
			return false
		}
	}
	return true
}

type readConfig struct {
	direct bool
	decode bool
}

// ReadOption adjusts a single read.
type ReadOption func(*readConfig)

// WithDirect overrides the reader's direct mode for one read.
func WithDirect(direct bool) ReadOption {
	return func(c *readConfig) { c.direct = direct }
}

// WithoutDecode returns the stored (encoded) bytes of the entry.
func WithoutDecode() ReadOption {
	return func(c *readConfig) { c.decode = false }
}

// ReadEntry returns the contents of a stored entry. Encoded entries are
// decoded into owned bytes. Verbatim entries, and all entries read with
// WithoutDecode, are returned as a view into the map in direct mode and as
// a copy otherwise. With verification enabled the stored bytes are hashed
// first and a mismatch is an *format.IntegrityError.
func (r *Reader) ReadEntry(e format.Entry, opts ...ReadOption) (*View, error) {
	if r.closed.Load() {
		return nil, format.ErrClosed
	}
	cfg := readConfig{direct: r.opts.Direct != DirectOff, decode: true}
	for _, o := range opts {
		o(&cfg)
	}

	if e.Offset < format.HeaderSize || e.End() > r.trailer.Offset || e.End() < e.Offset {
		return nil, format.NewFormatError("entry [%d, +%d) outside buffer region", e.Offset, e.EncLength)
	}
	raw := r.m.data[e.Offset:e.End()]
	if !r.opts.SkipVerify {
		if got := format.SumHash(raw); got != e.Hash {
			return nil, format.NewIntegrityError("buffer hash mismatch at offset %d: stored %s, computed %s", e.Offset, e.Hash.Digest(), got.Digest())
		}
	}

	if cfg.decode && !e.Verbatim() {
		out, err := codec.DecodeAll(raw, e.Codecs)
		if err != nil {
			return nil, fmt.Errorf("decode buffer at offset %d: %w", e.Offset, err)
		}
		if uint64(len(out)) != e.DecLength {
			return nil, format.NewIntegrityError("decoded length %d at offset %d, expected %d", len(out), e.Offset, e.DecLength)
		}
		return ownedView(out), nil
	}

	if cfg.direct {
		if !r.m.acquire() {
			return nil, format.ErrClosed
		}
		return directView(r.m, raw), nil
	}
	return ownedView(append([]byte(nil), raw...)), nil
}

// ReadBuffer returns the logical buffer i.
func (r *Reader) ReadBuffer(i int, opts ...ReadOption) (*View, error) {
	if i < 0 || i >= r.index.Len() {
		return nil, fmt.Errorf("buffer %d out of range [0, %d)", i, r.index.Len())
	}
	return r.ReadEntry(r.index.Logical(i), opts...)
}

// ReadBytes returns an owned copy of logical buffer i.
func (r *Reader) ReadBytes(i int) ([]byte, error) {
	v, err := r.ReadBuffer(i, WithDirect(false))
	if err != nil {
		return nil, err
	}
	defer v.Release()
	return v.Bytes()
}

// Buffers yields every logical buffer except the primary stream, reading
// each one only when the iteration reaches it. In direct mode the slices
// alias the memory map. The reader pins the map for each of them, so they
// stay valid after Close until ReleaseBuffers is called.
func (r *Reader) Buffers() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for i := range r.index.Len() - 1 {
			data, err := r.bytesAt(i)
			if !yield(data, err) || err != nil {
				return
			}
		}
	}
}

// bytesAt reads logical buffer i honoring the reader's direct mode. A
// direct view is kept in r.exported instead of being released.
func (r *Reader) bytesAt(i int) ([]byte, error) {
	v, err := r.ReadBuffer(i)
	if err != nil {
		return nil, fmt.Errorf("buffer %d: %w", i, err)
	}
	data, err := v.Bytes()
	if err != nil || !v.Direct() {
		v.Release()
		return data, err
	}
	r.mu.Lock()
	r.exported = append(r.exported, v)
	r.mu.Unlock()
	return data, nil
}

// Exported returns the number of direct slices handed out by Buffers and
// Load that still pin the memory map.
func (r *Reader) Exported() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exported)
}

// ReleaseBuffers unpins the slices handed out by Buffers and Load in direct
// mode. They must not be used afterwards: once the reader is closed and
// nothing else holds the map, it is unmapped.
func (r *Reader) ReleaseBuffers() error {
	r.mu.Lock()
	views := r.exported
	r.exported = nil
	r.mu.Unlock()

	var errs []error
	for _, v := range views {
		if err := v.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load rebuilds the stored object. The primary stream is the last logical
// buffer; the others are handed to the deserializer lazily. In direct mode
// the object may alias the memory map; see Buffers for its lifetime.
func (r *Reader) Load(deser Deserializer) (any, error) {
	if r.closed.Load() {
		return nil, format.ErrClosed
	}
	if len(r.index.Buffers) == 0 {
		return nil, fmt.Errorf("load %s: %w", r.path, format.ErrEmpty)
	}
	primary, err := r.bytesAt(r.index.Len() - 1)
	if err != nil {
		return nil, fmt.Errorf("primary stream: %w", err)
	}
	obj, err := deser.Deserialize(primary, r.Buffers())
	if err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	return obj, nil
}

// Close releases the reader's reference to the memory map. Direct views
// fail with format.ErrClosed afterwards. The map itself is unmapped once
// every outstanding view has been released and, if Buffers or Load handed
// out direct slices, once ReleaseBuffers has been called.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.m.closed.Store(true)
	if n := r.Exported(); n > 0 {
		r.log.Debug().Int("exported", n).Msg("memory map pinned by exported buffers")
	}
	return r.m.release()
}
