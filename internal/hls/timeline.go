package hls

import "log/slog"

// Sequence is a contiguous run of media sequence numbers with no
// discontinuity inside it.
type Sequence struct {
	FirstMSN uint64
	LastMSN  uint64
}

func (s *Sequence) removeOlderThan(msn uint64) {
	if s.FirstMSN < msn {
		s.FirstMSN = msn
	}
}

// Timeline is the rolling, per-rendition view of which media sequence
// numbers are still live, split into contiguous Sequences at
// discontinuities. It is mutated only by the Checker that owns it.
type Timeline struct {
	sequences []Sequence
	logger    *slog.Logger
}

// NewTimeline constructs an empty Timeline.
func NewTimeline(logger *slog.Logger) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timeline{logger: logger}
}

// Sequences returns the current contiguous runs, oldest first.
func (t *Timeline) Sequences() []Sequence {
	return t.sequences
}

// RemoveOlderThan drops every sequence that ends before msn, and clamps the
// first remaining sequence's start to at least msn.
func (t *Timeline) RemoveOlderThan(msn uint64) {
	kept := t.sequences[:0]
	for _, s := range t.sequences {
		if s.LastMSN >= msn {
			kept = append(kept, s)
		}
	}
	t.sequences = kept
	if len(t.sequences) > 0 {
		t.sequences[0].removeOlderThan(msn)
	}
}

// segmentRef is the minimal shape append-new-segments needs from a playlist
// segment, avoiding a dependency on the hlsplaylist package so Timeline
// stays a leaf.
type segmentRef struct {
	msn              uint64
	hasDiscontinuity bool
}

// AppendSegment extends the timeline with one new segment, starting a fresh
// Sequence when the timeline is empty or the segment carries the
// discontinuity flag.
func (t *Timeline) AppendSegment(msn uint64, hasDiscontinuity bool) {
	t.appendSegment(segmentRef{msn: msn, hasDiscontinuity: hasDiscontinuity})
}

func (t *Timeline) appendSegment(s segmentRef) {
	if len(t.sequences) == 0 || s.hasDiscontinuity {
		t.sequences = append(t.sequences, Sequence{FirstMSN: s.msn, LastMSN: s.msn})
		return
	}
	last := &t.sequences[len(t.sequences)-1]
	if last.LastMSN+1 != s.msn {
		t.logger.Debug("non-contiguous MSN across non-discontinuous boundary",
			slog.Uint64("expected", last.LastMSN+1), slog.Uint64("got", s.msn))
	}
	last.LastMSN = s.msn
}
