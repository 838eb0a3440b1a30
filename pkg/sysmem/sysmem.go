// Package sysmem detects physical memory so that memory-hungry parallel
// work, such as compressing gigabyte-sized blocks, can be sized to fit.
package sysmem

import "runtime"

// Fallback is assumed when the platform cannot report its memory.
const Fallback uint64 = 4 << 30

// Result is the detected physical memory.
type Result struct {
	Bytes uint64
	// Detected is false when Bytes is the Fallback value.
	Detected bool
}

// Total returns the physical memory of the machine.
func Total() Result {
	if n, ok := physical(); ok && n > 0 {
		return Result{Bytes: n, Detected: true}
	}
	return Result{Bytes: Fallback}
}

// Workers returns how many workers that each hold perWorker bytes can run
// at once within a quarter of physical memory. The result is at least 1 and
// at most GOMAXPROCS.
func Workers(perWorker uint64) int {
	return workers(Total().Bytes/4, perWorker, runtime.GOMAXPROCS(0))
}

func workers(budget, perWorker uint64, procs int) int {
	n := procs
	if perWorker > 0 {
		if fit := budget / perWorker; fit < uint64(n) {
			n = int(fit)
		}
	}
	return max(n, 1)
}
