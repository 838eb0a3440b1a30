package sysmem

import (
	"runtime"
	"testing"
)

func TestTotal(t *testing.T) {
	r := Total()
	if r.Bytes == 0 {
		t.Fatal("Total() returned 0 bytes")
	}
	if !r.Detected && r.Bytes != Fallback {
		t.Errorf("undetected Total() = %d, want fallback %d", r.Bytes, Fallback)
	}
	if runtime.GOOS == "linux" && !r.Detected {
		t.Log("memory detection failed on linux; using fallback")
	}
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		name      string
		budget    uint64
		perWorker uint64
		procs     int
		want      int
	}{
		{"cpu bound", 64 << 30, 1 << 20, 8, 8},
		{"memory bound", 4 << 30, 1 << 30, 16, 4},
		{"never zero", 1 << 20, 1 << 30, 16, 1},
		{"zero per worker", 1 << 30, 0, 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workers(tt.budget, tt.perWorker, tt.procs); got != tt.want {
				t.Errorf("workers(%d, %d, %d) = %d, want %d", tt.budget, tt.perWorker, tt.procs, got, tt.want)
			}
		})
	}
}

func TestWorkersBounds(t *testing.T) {
	n := Workers(1 << 30)
	if n < 1 || n > runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want within [1, %d]", n, runtime.GOMAXPROCS(0))
	}
}
