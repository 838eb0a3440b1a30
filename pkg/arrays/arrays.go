// Package arrays is a small object-graph serializer for container files: a
// Bundle of named numeric arrays plus scalar metadata. Array data travels
// out-of-band as container buffers; the primary stream is a CBOR document
// describing the bundle and referencing buffers by position.
package arrays

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/eunmann/bpack/pkg/container"
	"github.com/eunmann/bpack/pkg/format"
)

// Kind is the BufferInfo kind recorded for array buffers.
const Kind = "ndarray"

// itemSizes maps dtype codes to element widths in bytes.
var itemSizes = map[string]int{
	"i1": 1, "i2": 2, "i4": 4, "i8": 8,
	"u1": 1, "u2": 2, "u4": 4, "u8": 8,
	"f4": 4, "f8": 8,
}

// ItemSize returns the element width of dtype.
func ItemSize(dtype string) (int, error) {
	n, ok := itemSizes[dtype]
	if !ok {
		return 0, fmt.Errorf("unknown dtype %q", dtype)
	}
	return n, nil
}

// Array is a dense n-dimensional array in host byte order.
type Array struct {
	Name  string
	DType string
	Shape []int
	Data  []byte
}

// Len returns the number of elements implied by the shape.
func (a Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Validate checks that the data length matches dtype and shape.
func (a Array) Validate() error {
	size, err := ItemSize(a.DType)
	if err != nil {
		return fmt.Errorf("array %q: %w", a.Name, err)
	}
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("array %q: negative dimension in shape %v", a.Name, a.Shape)
		}
	}
	if want := a.Len() * size; len(a.Data) != want {
		return fmt.Errorf("array %q: %d bytes of data, shape %v of %s needs %d", a.Name, len(a.Data), a.Shape, a.DType, want)
	}
	return nil
}

// Info returns the buffer metadata recorded for the array.
func (a Array) Info() *format.BufferInfo {
	return &format.BufferInfo{Kind: Kind, DType: a.DType, Shape: a.Shape}
}

// FromInt32s builds a one-dimensional i4 array.
func FromInt32s(name string, vals []int32) Array {
	data := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		data = binary.NativeEndian.AppendUint32(data, uint32(v))
	}
	return Array{Name: name, DType: "i4", Shape: []int{len(vals)}, Data: data}
}

// Int32s returns the elements of an i4 array.
func (a Array) Int32s() ([]int32, error) {
	if a.DType != "i4" {
		return nil, fmt.Errorf("array %q has dtype %s, want i4", a.Name, a.DType)
	}
	if len(a.Data)%4 != 0 {
		return nil, fmt.Errorf("array %q: %d bytes is not a multiple of 4", a.Name, len(a.Data))
	}
	out := make([]int32, len(a.Data)/4)
	for i := range out {
		out[i] = int32(binary.NativeEndian.Uint32(a.Data[4*i:]))
	}
	return out, nil
}

// FromFloat64s builds a one-dimensional f8 array.
func FromFloat64s(name string, vals []float64) Array {
	data := make([]byte, 0, 8*len(vals))
	for _, v := range vals {
		data = binary.NativeEndian.AppendUint64(data, math.Float64bits(v))
	}
	return Array{Name: name, DType: "f8", Shape: []int{len(vals)}, Data: data}
}

// Float64s returns the elements of an f8 array.
func (a Array) Float64s() ([]float64, error) {
	if a.DType != "f8" {
		return nil, fmt.Errorf("array %q has dtype %s, want f8", a.Name, a.DType)
	}
	if len(a.Data)%8 != 0 {
		return nil, fmt.Errorf("array %q: %d bytes is not a multiple of 8", a.Name, len(a.Data))
	}
	out := make([]float64, len(a.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.NativeEndian.Uint64(a.Data[8*i:]))
	}
	return out, nil
}

// FromBytes builds a one-dimensional u1 array holding raw bytes.
func FromBytes(name string, data []byte) Array {
	return Array{Name: name, DType: "u1", Shape: []int{len(data)}, Data: data}
}

// Bundle is the object stored by Serializer.
type Bundle struct {
	Meta   map[string]any
	Arrays []Array
}

// Get returns the array with the given name.
func (b *Bundle) Get(name string) (Array, bool) {
	for _, a := range b.Arrays {
		if a.Name == name {
			return a, true
		}
	}
	return Array{}, false
}

type document struct {
	Meta   map[string]any `cbor:"meta,omitempty"`
	Arrays []arrayRecord  `cbor:"arrays"`
}

type arrayRecord struct {
	Name   string `cbor:"name"`
	DType  string `cbor:"dtype"`
	Shape  []int  `cbor:"shape"`
	Buffer int    `cbor:"buffer"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("arrays: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("arrays: CBOR decoder initialization failed: " + err.Error())
	}
}

// Serializer stores *Bundle and Bundle values. It implements both
// container.Serializer and container.Deserializer.
type Serializer struct{}

var (
	_ container.Serializer   = Serializer{}
	_ container.Deserializer = Serializer{}
)

// Serialize sends every array to sink in order and returns the CBOR
// document describing the bundle.
func (Serializer) Serialize(obj any, sink container.BufferSink) ([]byte, error) {
	var b *Bundle
	switch v := obj.(type) {
	case *Bundle:
		b = v
	case Bundle:
		b = &v
	default:
		return nil, fmt.Errorf("arrays: cannot serialize %T", obj)
	}

	doc := document{Meta: b.Meta, Arrays: make([]arrayRecord, len(b.Arrays))}
	for i, a := range b.Arrays {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if err := sink(a.Data, a.Info()); err != nil {
			return nil, fmt.Errorf("array %q: %w", a.Name, err)
		}
		doc.Arrays[i] = arrayRecord{Name: a.Name, DType: a.DType, Shape: a.Shape, Buffer: i}
	}
	return encMode.Marshal(doc)
}

// Deserialize rebuilds a *Bundle. Array data aliases the buffers it is
// given, so with a direct-mode reader it is only valid until the reader is
// closed.
func (Serializer) Deserialize(primary []byte, buffers iter.Seq2[[]byte, error]) (any, error) {
	var doc document
	if err := decMode.Unmarshal(primary, &doc); err != nil {
		return nil, fmt.Errorf("arrays: decode document: %w", err)
	}

	var bufs [][]byte
	for buf, err := range buffers {
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, buf)
	}

	b := &Bundle{Meta: doc.Meta, Arrays: make([]Array, len(doc.Arrays))}
	for i, rec := range doc.Arrays {
		if rec.Buffer < 0 || rec.Buffer >= len(bufs) {
			return nil, fmt.Errorf("arrays: array %q references buffer %d of %d", rec.Name, rec.Buffer, len(bufs))
		}
		a := Array{Name: rec.Name, DType: rec.DType, Shape: rec.Shape, Data: bufs[rec.Buffer]}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		b.Arrays[i] = a
	}
	return b, nil
}
