// Package format defines the on-disk layout of bpack container files.
//
// A container is laid out as:
//
//	Header   16 bytes   magic "BPCK", version u16, flags u16, length i64
//	Buffers  variable   encoded buffers, optionally page-aligned
//	Index    variable   self-describing index blob (see DecodeIndex)
//	Trailer  44 bytes   index offset u64, index length u32, index SHA-256
//
// All integers in the header and trailer are big-endian.
package format

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// Magic identifies bpack container files.
	Magic = "BPCK"
	// Version is the format version written by this package.
	Version uint16 = 3
	// VersionLegacy is the oldest version that can still be read. Its index
	// is MessagePack encoded and it never deduplicates buffers.
	VersionLegacy uint16 = 2
)

// HeaderSize is the size of the header in bytes.
const HeaderSize = 4 + 2 + 2 + 8 // 16 bytes

// TrailerSize is the size of the trailer in bytes.
const TrailerSize = 8 + 4 + 32 // 44 bytes

// Flags are the header flag bits.
type Flags uint16

const (
	// FlagBigEndian marks payload buffers as written on a big-endian host.
	// Lengths and offsets in the header, trailer and index are unaffected.
	FlagBigEndian Flags = 1 << 0
	// FlagMappable marks a file whose buffers are all stored verbatim and
	// page-aligned, so they can be used straight from a memory map.
	FlagMappable Flags = 1 << 1

	knownFlags = FlagBigEndian | FlagMappable
)

// Has reports whether all bits of o are set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// String renders the flag set as "BIG_ENDIAN|MAPPABLE", or "0" when empty.
func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	if f.Has(FlagBigEndian) {
		parts = append(parts, "BIG_ENDIAN")
	}
	if f.Has(FlagMappable) {
		parts = append(parts, "MAPPABLE")
	}
	if rest := f &^ knownFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%04x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// Header is the fixed record at offset 0.
type Header struct {
	Version uint16
	Flags   Flags
	Length  int64 // Total file length, -1 while the file is being written
}

// NewHeader returns the header a writer emits before any buffer is written.
func NewHeader() Header {
	return Header{Version: Version, Length: -1}
}

// EncodeHeader writes a header to a byte slice.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Flags))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.Length))
	return buf
}

// DecodeHeader reads a header from a byte slice. It rejects a bad magic, a
// version this package cannot read, and flag bits it does not know.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, NewFormatError("header too short: %d bytes", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return Header{}, NewFormatError("invalid magic %q", buf[0:4])
	}

	h := Header{
		Version: binary.BigEndian.Uint16(buf[4:6]),
		Flags:   Flags(binary.BigEndian.Uint16(buf[6:8])),
		Length:  int64(binary.BigEndian.Uint64(buf[8:16])),
	}
	if !SupportedVersion(h.Version) {
		return Header{}, NewFormatError("invalid version %d", h.Version)
	}
	if h.Flags&^knownFlags != 0 {
		return Header{}, NewFormatError("unsupported flags 0x%04x", uint16(h.Flags))
	}
	return h, nil
}

// SupportedVersion reports whether v can be read.
func SupportedVersion(v uint16) bool {
	return v == Version || v == VersionLegacy
}

// TrailerPosition returns the offset of the trailer implied by the header
// length. It fails when the length is unknown (the writer never finished) or
// too small to hold a header and a trailer.
func (h Header) TrailerPosition() (int64, error) {
	switch {
	case h.Length >= HeaderSize+TrailerSize:
		return h.Length - TrailerSize, nil
	case h.Length > 0:
		return 0, NewFormatError("file size %d not enough for a container", h.Length)
	default:
		return 0, NewFormatError("no file length, unfinished or corrupt container")
	}
}

// Trailer locates and authenticates the index blob.
type Trailer struct {
	Offset uint64
	Length uint32
	Hash   Hash
}

// EncodeTrailer writes a trailer to a byte slice.
func EncodeTrailer(t Trailer) []byte {
	buf := make([]byte, TrailerSize)
	binary.BigEndian.PutUint64(buf[0:8], t.Offset)
	binary.BigEndian.PutUint32(buf[8:12], t.Length)
	copy(buf[12:44], t.Hash[:])
	return buf
}

// DecodeTrailer reads a trailer from a byte slice.
func DecodeTrailer(buf []byte) (Trailer, error) {
	if len(buf) != TrailerSize {
		return Trailer{}, NewFormatError("trailer is %d bytes, want %d", len(buf), TrailerSize)
	}
	t := Trailer{
		Offset: binary.BigEndian.Uint64(buf[0:8]),
		Length: binary.BigEndian.Uint32(buf[8:12]),
	}
	copy(t.Hash[:], buf[12:44])
	return t, nil
}
