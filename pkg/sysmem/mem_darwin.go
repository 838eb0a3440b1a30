//go:build darwin

package sysmem

import "golang.org/x/sys/unix"

func physical() (uint64, bool) {
	n, err := unix.SysctlUint64("hw.memsize")
	return n, err == nil
}
