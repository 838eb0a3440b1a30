// Package container writes and reads bpack container files: a sequence of
// optionally encoded byte buffers followed by an index, as laid out in
// package format.
//
// Objects are stored through a Serializer, which hands each large buffer to
// the writer out-of-band and returns a primary stream describing the object.
// The primary stream is always the last logical buffer. A Deserializer gets
// the primary stream back together with the other buffers in order.
package container

import (
	"iter"

	"github.com/eunmann/bpack/pkg/format"
)

// BufferSink receives one out-of-band buffer during serialization. info may
// be nil.
type BufferSink func(buf []byte, info *format.BufferInfo) error

// Serializer turns an object into out-of-band buffers and a primary stream.
// Serialize calls sink once per buffer, in the order the Deserializer
// expects them back, and returns the primary stream.
type Serializer interface {
	Serialize(obj any, sink BufferSink) ([]byte, error)
}

// Deserializer rebuilds an object from its primary stream and out-of-band
// buffers. buffers yields each buffer lazily in logical order; iteration
// stops at the first error.
type Deserializer interface {
	Deserialize(primary []byte, buffers iter.Seq2[[]byte, error]) (any, error)
}
