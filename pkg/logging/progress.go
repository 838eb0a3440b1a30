package logging

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/bpack/pkg/humanfmt"
)

// Progress counts items and bytes processed by a multi-step operation such
// as packing several input files. It is safe for concurrent use.
type Progress struct {
	total int64
	done  atomic.Int64
	bytes atomic.Int64
	start time.Time
	log   zerolog.Logger
}

// NewProgress starts tracking total items.
func NewProgress(log zerolog.Logger, total int64) *Progress {
	return &Progress{total: total, start: time.Now(), log: log}
}

// Step records one finished item of n bytes and logs it at debug level.
func (p *Progress) Step(name string, n int64) {
	done := p.done.Add(1)
	p.bytes.Add(n)
	e := p.log.Debug().
		Str("item", name).
		Int64("bytes", n).
		Int64("done", done).
		Int64("total", p.total)
	if IsPrettyMode() {
		e = e.Str("bytes_h", humanfmt.Bytes(n))
	}
	e.Msg("item done")
}

// Done returns the number of recorded items.
func (p *Progress) Done() int64 {
	return p.done.Load()
}

// Bytes returns the total bytes recorded.
func (p *Progress) Bytes() int64 {
	return p.bytes.Load()
}

// Pct returns the progress percentage (0-100).
func (p *Progress) Pct() float64 {
	if p.total == 0 {
		return 100.0
	}
	return float64(p.done.Load()) * 100.0 / float64(p.total)
}

// Elapsed returns time since tracking started.
func (p *Progress) Elapsed() time.Duration {
	return time.Since(p.start)
}

// Complete returns a completion event carrying the recorded totals.
func (p *Progress) Complete(event string) *Event {
	return NewEvent(p.log, event, p.Elapsed()).
		Int64("items", p.done.Load()).
		Bytes("bytes", p.bytes.Load()).
		Throughput(p.bytes.Load())
}

// Event builds a completion log line with machine-readable fields and, in
// pretty mode, human-readable companions suffixed with "_h".
type Event struct {
	e       *zerolog.Event
	elapsed time.Duration
}

// NewEvent starts an info-level completion event.
func NewEvent(log zerolog.Logger, event string, elapsed time.Duration) *Event {
	return newEvent(log.Info(), event, elapsed)
}

// NewDebugEvent starts a debug-level completion event.
func NewDebugEvent(log zerolog.Logger, event string, elapsed time.Duration) *Event {
	return newEvent(log.Debug(), event, elapsed)
}

func newEvent(e *zerolog.Event, event string, elapsed time.Duration) *Event {
	e = e.Str("event", event).Int64("duration_ms", elapsed.Milliseconds())
	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(elapsed))
	}
	return &Event{e: e, elapsed: elapsed}
}

// Str adds a string field.
func (ev *Event) Str(key, val string) *Event {
	ev.e = ev.e.Str(key, val)
	return ev
}

// Int adds an int field.
func (ev *Event) Int(key string, val int) *Event {
	ev.e = ev.e.Int(key, val)
	return ev
}

// Int64 adds an int64 field.
func (ev *Event) Int64(key string, val int64) *Event {
	ev.e = ev.e.Int64(key, val)
	return ev
}

// Bytes adds a byte count.
func (ev *Event) Bytes(key string, n int64) *Event {
	ev.e = ev.e.Int64(key, n)
	if IsPrettyMode() {
		ev.e = ev.e.Str(key+"_h", humanfmt.Bytes(n))
	}
	return ev
}

// Throughput adds the rate of n bytes over the event's elapsed time.
func (ev *Event) Throughput(n int64) *Event {
	if ev.elapsed > 0 {
		ev.e = ev.e.Float64("throughput_bps", float64(n)/ev.elapsed.Seconds())
		if IsPrettyMode() {
			ev.e = ev.e.Str("throughput_h", humanfmt.Throughput(n, ev.elapsed))
		}
	}
	return ev
}

// Msg emits the event.
func (ev *Event) Msg(msg string) {
	ev.e.Msg(msg)
}
