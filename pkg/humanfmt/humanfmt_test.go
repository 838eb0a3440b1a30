package humanfmt

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	cases := map[int64]string{
		-7:            "-7 B",
		0:             "0 B",
		512:           "512 B",
		4 * KiB:       "4.00 KiB",
		3*MiB + MiB/4: "3.25 MiB",
		5 * GiB:       "5.00 GiB",
		2*TiB + TiB/2: "2.50 TiB",
	}
	for in, want := range cases {
		if got := Bytes(in); got != want {
			t.Errorf("Bytes(%d) = %q, want %q", in, got, want)
		}
	}
	if got := BytesUint64(2 * TiB); got != "2.00 TiB" {
		t.Errorf("BytesUint64(2 TiB) = %q", got)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		part, whole int64
		want        string
	}{
		{25, 100, "25.0%"},
		{1, 3, "33.3%"},
		{150, 100, "150.0%"},
		{5, 0, "-"},
	}
	for _, tt := range tests {
		if got := Ratio(tt.part, tt.whole); got != tt.want {
			t.Errorf("Ratio(%d, %d) = %q, want %q", tt.part, tt.whole, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ns"},
		{42 * time.Nanosecond, "42ns"},
		{2500 * time.Nanosecond, "2.5µs"},
		{12500 * time.Microsecond, "12.5ms"},
		{2500 * time.Millisecond, "2.50s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3 * time.Hour, "3h"},
		{time.Hour + 45*time.Minute, "1h45m"},
		{-time.Second, "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Duration(tt.in); got != tt.want {
				t.Errorf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestThroughput(t *testing.T) {
	tests := []struct {
		n    int64
		d    time.Duration
		want string
	}{
		{300, time.Second, "300 B/s"},
		{2 * KiB, time.Second, "2.00 KiB/s"},
		{10 * MiB, 4 * time.Second, "2.50 MiB/s"},
		{MiB, 0, "∞"},
	}
	for _, tt := range tests {
		if got := Throughput(tt.n, tt.d); got != tt.want {
			t.Errorf("Throughput(%d, %v) = %q, want %q", tt.n, tt.d, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	cases := map[int64]string{
		-5:            "-5",
		42:            "42",
		2500:          "2.50K",
		7_250_000:     "7.25M",
		3_000_000_000: "3.00B",
	}
	for in, want := range cases {
		if got := Count(in); got != want {
			t.Errorf("Count(%d) = %q, want %q", in, got, want)
		}
	}
}
