package container

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// mapping is a read-only memory map of a whole file shared by a Reader and
// the direct views it hands out. The region is unmapped when the last
// reference is released, so a slice taken from a live view never points at
// unmapped memory.
type mapping struct {
	path   string
	data   []byte
	refs   atomic.Int64
	closed atomic.Bool

	unmapOnce sync.Once
	unmapErr  error
}

// mapFile opens a file and maps it into memory. An empty file yields an
// empty mapping without calling mmap.
func mapFile(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	m := &mapping{path: path}
	m.refs.Store(1)

	size := info.Size()
	if size == 0 {
		return m, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("mmap: file size %d exceeds address space", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	m.data = data
	return m, nil
}

// Size returns the mapped length.
func (m *mapping) Size() int64 {
	return int64(len(m.data))
}

// acquire adds a reference. It fails once the owning reader is closed.
func (m *mapping) acquire() bool {
	for {
		n := m.refs.Load()
		if n <= 0 || m.closed.Load() {
			return false
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and unmaps the region when none remain.
func (m *mapping) release() error {
	if m.refs.Add(-1) > 0 {
		return nil
	}
	m.unmapOnce.Do(func() {
		if m.data != nil {
			if err := unix.Munmap(m.data); err != nil {
				m.unmapErr = fmt.Errorf("munmap: %w", err)
			}
			m.data = nil
		}
	})
	return m.unmapErr
}
