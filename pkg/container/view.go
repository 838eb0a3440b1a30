package container

import (
	"sync/atomic"

	"github.com/eunmann/bpack/pkg/format"
)

// View is the result of reading one buffer. It either owns its bytes (a
// copy or a decoded buffer) or borrows them from the reader's memory map.
//
// Bytes fails with format.ErrClosed once the view is released. A borrowed
// view also fails once its reader is closed; it holds a reference to the
// mapping, which stays valid until the reader and every view have let go of
// it. Callers should Release views they no longer need.
type View struct {
	data     []byte
	m        *mapping
	released atomic.Bool
}

func ownedView(data []byte) *View {
	return &View{data: data}
}

// directView borrows data from m. The caller has already acquired a
// reference on behalf of the view.
func directView(m *mapping, data []byte) *View {
	return &View{data: data, m: m}
}

// Bytes returns the buffer contents. For a direct view the slice aliases
// read-only mapped memory and must not be written to.
func (v *View) Bytes() ([]byte, error) {
	if v.released.Load() || (v.m != nil && v.m.closed.Load()) {
		return nil, format.ErrClosed
	}
	return v.data, nil
}

// Len returns the buffer length in bytes.
func (v *View) Len() int {
	return len(v.data)
}

// Direct reports whether the view borrows from the memory map.
func (v *View) Direct() bool {
	return v.m != nil
}

// Release gives up the view. Releasing twice is a no-op.
func (v *View) Release() error {
	if !v.released.CompareAndSwap(false, true) {
		return nil
	}
	if v.m == nil {
		return nil
	}
	return v.m.release()
}
