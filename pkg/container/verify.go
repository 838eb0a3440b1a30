package container

import (
	"fmt"

	"github.com/eunmann/bpack/pkg/codec"
	"github.com/eunmann/bpack/pkg/format"
)

// FindErrors scans the whole container and describes every problem found:
// an index hash mismatch, entries that overlap or leave the buffer region,
// encoded bytes whose hash does not match, and buffers that fail to decode
// to their recorded length. The scan does not stop at the first problem.
// An entry whose hash mismatches is not decoded, so each corrupted entry
// yields one finding.
func (r *Reader) FindErrors() ([]string, error) {
	if r.closed.Load() {
		return nil, format.ErrClosed
	}

	var findings []string
	report := func(msg string, args ...any) {
		findings = append(findings, fmt.Sprintf(msg, args...))
	}

	if got := format.SumHash(r.indexBlob()); got != r.trailer.Hash {
		report("index: hash mismatch: stored %s, computed %s", r.trailer.Hash.Digest(), got.Digest())
	}

	end := uint64(format.HeaderSize)
	for i, e := range r.index.Buffers {
		if e.Offset < end {
			report("entry %d: offset %d precedes end of previous data %d", i, e.Offset, end)
		}
		if e.End() < e.Offset || e.End() > r.trailer.Offset {
			report("entry %d: [%d, +%d) extends past index offset %d", i, e.Offset, e.EncLength, r.trailer.Offset)
			continue
		}
		end = max(end, e.End())

		raw := r.m.data[e.Offset:e.End()]
		if got := format.SumHash(raw); got != e.Hash {
			report("entry %d: hash mismatch: stored %s, computed %s", i, e.Hash.Digest(), got.Digest())
			continue
		}

		decLen := uint64(len(raw))
		if !e.Verbatim() {
			out, err := codec.DecodeAll(raw, e.Codecs)
			if err != nil {
				report("entry %d: decode failed: %v", i, err)
				continue
			}
			decLen = uint64(len(out))
		}
		if decLen != e.DecLength {
			report("entry %d: decoded length %d, expected %d", i, decLen, e.DecLength)
		}
	}

	r.log.Debug().Int("findings", len(findings)).Msg("scanned container")
	return findings, nil
}
