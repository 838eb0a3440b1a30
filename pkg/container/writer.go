package container

import (
	"bufio"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"

	"github.com/eunmann/bpack/pkg/codec"
	"github.com/eunmann/bpack/pkg/fileutil"
	"github.com/eunmann/bpack/pkg/format"
	"github.com/eunmann/bpack/pkg/humanfmt"
	"github.com/eunmann/bpack/pkg/logging"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Align pads every buffer to start on a page boundary.
	Align bool
	// Codecs is the pipeline applied to every buffer, in encode order. Each
	// element is anything codec.Resolve accepts, or a codec.Selector.
	Codecs []any
	// Deduplicate stores byte-identical buffers once. Later occurrences
	// only add a logical reference to the first stored entry.
	Deduplicate bool
	// PageSize overrides the alignment unit (default: the host page size).
	PageSize int
	// Logger overrides the global logger.
	Logger *zerolog.Logger
}

// Writer creates a container file. It writes to a temporary file next to
// the destination and moves it into place once the index and header are
// complete, so an unfinished container is never visible under its final
// name. A Writer is not safe for concurrent use.
type Writer struct {
	tmp      *fileutil.TempFile
	bw       *bufio.Writer
	pos      int64
	pageSize int64

	opts     WriterOptions
	pipeline *codec.Pipeline
	log      zerolog.Logger

	index   format.Index
	byHash  map[format.Hash]int
	decSize int64
	encSize int64
	start   time.Time

	finished bool
	closed   bool
	err      error // sticky failure; Close discards the file
}

// NewWriter creates a writer for path. Codec configuration errors are
// reported before the file is created.
func NewWriter(path string, opts WriterOptions) (*Writer, error) {
	pipeline, err := codec.NewPipeline(opts.Codecs...)
	if err != nil {
		return nil, err
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = unix.Getpagesize()
	}

	tmp, err := fileutil.CreateTemp(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		tmp:      tmp,
		bw:       bufio.NewWriterSize(tmp, 1<<20),
		pageSize: int64(pageSize),
		opts:     opts,
		pipeline: pipeline,
		log:      logging.Or(opts.Logger, "writer").With().Str("path", path).Logger(),
		byHash:   make(map[format.Hash]int),
		start:    time.Now(),
	}

	// Length stays -1 until Finish rewrites the header.
	if err := w.write(format.EncodeHeader(format.NewHeader())); err != nil {
		tmp.Discard()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// NewMappableWriter creates a writer whose output can be used directly from
// a memory map: buffers are page-aligned and stored verbatim.
func NewMappableWriter(path string) (*Writer, error) {
	return NewWriter(path, WriterOptions{Align: true})
}

// NewCompressedWriter creates a writer that compresses every buffer with
// the given codec spec ("gzip" when nil).
func NewCompressedWriter(path string, spec any) (*Writer, error) {
	if spec == nil {
		spec = codec.GzipName
	}
	return NewWriter(path, WriterOptions{Codecs: []any{spec}})
}

func (w *Writer) write(p []byte) error {
	n, err := w.bw.Write(p)
	w.pos += int64(n)
	return err
}

// pad writes zero bytes up to the next page boundary.
func (w *Writer) pad() error {
	rem := w.pos % w.pageSize
	if rem == 0 {
		return nil
	}
	return w.write(make([]byte, w.pageSize-rem))
}

// Entries returns the number of stored entries written so far.
func (w *Writer) Entries() int {
	return len(w.index.Buffers)
}

// LogicalLen returns the number of buffers written so far, duplicates
// included.
func (w *Writer) LogicalLen() int {
	return w.index.Len()
}

// WriteBuffer appends one buffer. info is optional type and shape metadata
// recorded in the index and passed to codec selectors. A failure is sticky:
// later calls return it and Close discards the file.
func (w *Writer) WriteBuffer(buf []byte, info *format.BufferInfo) error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return fmt.Errorf("write buffer: %w", format.ErrClosed)
	}

	decHash := format.SumHash(buf)
	if w.opts.Deduplicate {
		if n, ok := w.byHash[decHash]; ok {
			w.index.Refs = append(w.index.Refs, n)
			w.log.Debug().
				Int("entry", n).
				Int("length", len(buf)).
				Msg("deduplicated buffer")
			return nil
		}
	}

	enc := buf
	var configs []format.CodecConfig
	if len(buf) > 0 {
		codecs, err := w.pipeline.Resolve(codec.BufferDescriptor{Data: buf, Info: info})
		if err != nil {
			return w.fail(fmt.Errorf("resolve codecs: %w", err))
		}
		for _, c := range codecs {
			if enc, err = c.Encode(enc); err != nil {
				return w.fail(fmt.Errorf("encode with %s: %w", c.Config().ID(), err))
			}
			configs = append(configs, c.Config())
		}
	}

	if w.opts.Align {
		if err := w.pad(); err != nil {
			return w.fail(fmt.Errorf("pad buffer: %w", err))
		}
	}

	entry := format.Entry{
		Offset:    uint64(w.pos),
		EncLength: uint64(len(enc)),
		DecLength: uint64(len(buf)),
		Hash:      format.SumHash(enc),
		Info:      info,
		Codecs:    configs,
	}
	if err := w.write(enc); err != nil {
		return w.fail(fmt.Errorf("write buffer: %w", err))
	}

	n := len(w.index.Buffers)
	w.index.Buffers = append(w.index.Buffers, entry)
	w.index.Refs = append(w.index.Refs, n)
	if w.opts.Deduplicate {
		w.byHash[decHash] = n
	}
	w.decSize += int64(len(buf))
	w.encSize += int64(len(enc))

	w.log.Debug().
		Int("entry", n).
		Uint64("offset", entry.Offset).
		Int("length", len(buf)).
		Int("enc_length", len(enc)).
		Str("codecs", format.PrettyCodecs(configs)).
		Str("hash", entry.Hash.String()).
		Msg("wrote buffer")
	return nil
}

// Dump serializes obj, writes its buffers followed by the primary stream,
// and finishes the file. Close must still be called to move the file into
// place.
func (w *Writer) Dump(obj any, ser Serializer) error {
	var (
		count int
		total int64
	)
	sink := func(buf []byte, info *format.BufferInfo) error {
		count++
		total += int64(len(buf))
		return w.WriteBuffer(buf, info)
	}
	primary, err := ser.Serialize(obj, sink)
	if err != nil {
		return w.fail(fmt.Errorf("serialize: %w", err))
	}
	encoded := w.encSize
	if err := w.WriteBuffer(primary, nil); err != nil {
		return w.fail(fmt.Errorf("write primary stream: %w", err))
	}

	w.log.Info().Msgf("pickled %d bytes with %d buffers totaling %s (%s encoded)",
		len(primary), count, humanfmt.Bytes(total), humanfmt.Bytes(encoded))
	return w.Finish()
}

// Finish writes the index and trailer and rewrites the header with the
// final length and flags. Further writes fail. It is called by Dump and
// Close; calling it again is a no-op.
func (w *Writer) Finish() error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return nil
	}
	w.finished = true
	return w.fail(w.finish())
}

// fail records err as the writer's sticky failure.
func (w *Writer) fail(err error) error {
	if err != nil && w.err == nil {
		w.err = err
	}
	return err
}

func (w *Writer) finish() error {
	blob, err := format.EncodeIndex(&w.index)
	if err != nil {
		return err
	}
	if uint64(len(blob)) > math.MaxUint32 {
		return fmt.Errorf("index of %d bytes: %w", len(blob), format.ErrIndexTooLarge)
	}

	trailer := format.Trailer{
		Offset: uint64(w.pos),
		Length: uint32(len(blob)),
		Hash:   format.SumHash(blob),
	}
	if err := w.write(blob); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := w.write(format.EncodeTrailer(trailer)); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	header := format.NewHeader()
	header.Length = w.pos
	if cpu.IsBigEndian {
		header.Flags |= format.FlagBigEndian
	}
	if w.mappable() {
		header.Flags |= format.FlagMappable
	}
	if _, err := w.tmp.WriteAt(format.EncodeHeader(header), 0); err != nil {
		return fmt.Errorf("rewrite header: %w", err)
	}

	logging.NewDebugEvent(w.log, "file_finished", time.Since(w.start)).
		Int("entries", len(w.index.Buffers)).
		Int("refs", w.index.Len()).
		Bytes("size", w.pos).
		Str("flags", header.Flags.String()).
		Str("compression", humanfmt.Ratio(w.encSize, w.decSize)).
		Msg("finalized container")
	return nil
}

func (w *Writer) mappable() bool {
	if !w.opts.Align {
		return false
	}
	for _, e := range w.index.Buffers {
		if !e.Verbatim() {
			return false
		}
	}
	return true
}

// Close finishes the file if needed and moves it to its final path. If
// finishing or an earlier Dump failed, the temporary file is removed and the
// failure returned.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.Finish(); err != nil {
		w.tmp.Discard()
		return err
	}
	return w.tmp.Commit()
}

// Abort discards the file being written.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.finished = true
	return w.tmp.Discard()
}
