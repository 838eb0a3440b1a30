package format

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// encMode uses Core Deterministic Encoding so that the same index always
// produces the same bytes, and therefore the same trailer hash.
var encMode cbor.EncMode

// decMode decodes untyped maps (codec parameters) as map[string]any.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("format: CBOR decoder initialization failed: " + err.Error())
	}
}

// indexRecord is the version 3 index blob.
type indexRecord struct {
	Buffers []entryRecord `cbor:"buffers"`
	Refs    []uint64      `cbor:"refs"`
}

type entryRecord struct {
	Offset    uint64           `cbor:"offset"`
	EncLength uint64           `cbor:"enc_length"`
	DecLength uint64           `cbor:"dec_length"`
	Hash      []byte           `cbor:"hash"`
	Info      *BufferInfo      `cbor:"info"`
	Codecs    []map[string]any `cbor:"codecs"`
}

// legacyEntryRecord is one element of the version 2 index, a MessagePack
// array of maps. Info is a (kind, dtype, shape) triple.
type legacyEntryRecord struct {
	Offset    uint64           `msgpack:"offset"`
	EncLength uint64           `msgpack:"enc_length"`
	DecLength uint64           `msgpack:"dec_length"`
	Hash      []byte           `msgpack:"hash"`
	Info      []any            `msgpack:"info"`
	Codecs    []map[string]any `msgpack:"codecs"`
}

// EncodeIndex serializes an index in the current (version 3) layout.
func EncodeIndex(ix *Index) ([]byte, error) {
	rec := indexRecord{
		Buffers: make([]entryRecord, len(ix.Buffers)),
		Refs:    make([]uint64, len(ix.Refs)),
	}
	for i, e := range ix.Buffers {
		codecs := make([]map[string]any, len(e.Codecs))
		for j, c := range e.Codecs {
			codecs[j] = c
		}
		rec.Buffers[i] = entryRecord{
			Offset:    e.Offset,
			EncLength: e.EncLength,
			DecLength: e.DecLength,
			Hash:      e.Hash[:],
			Info:      e.Info,
			Codecs:    codecs,
		}
	}
	for i, ref := range ix.Refs {
		rec.Refs[i] = uint64(ref)
	}
	return encMode.Marshal(rec)
}

// DecodeIndex parses an index blob. The layout is selected by the version
// recorded in the header.
func DecodeIndex(version uint16, blob []byte) (*Index, error) {
	var (
		ix  *Index
		err error
	)
	switch version {
	case Version:
		ix, err = decodeIndexV3(blob)
	case VersionLegacy:
		ix, err = decodeIndexV2(blob)
	default:
		return nil, NewFormatError("invalid version %d", version)
	}
	if err != nil {
		return nil, err
	}
	if err := ix.Validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

func decodeIndexV3(blob []byte) (*Index, error) {
	var rec indexRecord
	if err := decMode.Unmarshal(blob, &rec); err != nil {
		return nil, &FormatError{Msg: "decode index", Err: err}
	}

	ix := &Index{
		Buffers: make([]Entry, len(rec.Buffers)),
		Refs:    make([]int, len(rec.Refs)),
	}
	for i, r := range rec.Buffers {
		hash, err := HashFromBytes(r.Hash)
		if err != nil {
			return nil, err
		}
		ix.Buffers[i] = Entry{
			Offset:    r.Offset,
			EncLength: r.EncLength,
			DecLength: r.DecLength,
			Hash:      hash,
			Info:      r.Info,
			Codecs:    toCodecConfigs(r.Codecs),
		}
	}
	for i, ref := range rec.Refs {
		if ref >= uint64(len(ix.Buffers)) {
			return nil, NewFormatError("logical buffer %d references entry %d of %d", i, ref, len(ix.Buffers))
		}
		ix.Refs[i] = int(ref)
	}
	return ix, nil
}

func decodeIndexV2(blob []byte) (*Index, error) {
	var recs []legacyEntryRecord
	if err := msgpack.Unmarshal(blob, &recs); err != nil {
		return nil, &FormatError{Msg: "decode legacy index", Err: err}
	}

	ix := &Index{
		Buffers: make([]Entry, len(recs)),
		Refs:    make([]int, len(recs)),
	}
	for i, r := range recs {
		hash, err := HashFromBytes(r.Hash)
		if err != nil {
			return nil, err
		}
		ix.Buffers[i] = Entry{
			Offset:    r.Offset,
			EncLength: r.EncLength,
			DecLength: r.DecLength,
			Hash:      hash,
			Info:      legacyInfo(r.Info),
			Codecs:    toCodecConfigs(r.Codecs),
		}
		ix.Refs[i] = i
	}
	return ix, nil
}

func toCodecConfigs(maps []map[string]any) []CodecConfig {
	if len(maps) == 0 {
		return nil
	}
	out := make([]CodecConfig, len(maps))
	for i, m := range maps {
		out[i] = CodecConfig(m)
	}
	return out
}

// legacyInfo converts the (kind, dtype, shape) triple of a version 2 entry.
// Anything it cannot interpret is dropped; the info is advisory.
func legacyInfo(raw []any) *BufferInfo {
	if len(raw) != 3 {
		return nil
	}
	kind, _ := raw[0].(string)
	dtype, _ := raw[1].(string)
	dims, _ := raw[2].([]any)
	info := &BufferInfo{Kind: kind, DType: dtype, Shape: make([]int, 0, len(dims))}
	for _, d := range dims {
		if n, ok := toInt(d); ok {
			info.Shape = append(info.Shape, n)
		}
	}
	return info
}
