// Package eventsink implements the severity-leveled capability that carries
// findings out of the conformance checker. Unlike the metric channel, the
// event sink never drops a sample: every submitted event is either
// delivered or blocks its producer, because losing a conformance finding
// would defeat the purpose of the tool.
package eventsink

import "time"

// Severity classifies one emitted event.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Record wraps one severity-tagged event with the metadata common to every
// emission, regardless of the payload type.
type Record[T any] struct {
	Time     time.Time
	Severity Severity
	Extra    T
}

// Sink is a cloneable capability with three severity channels. No ordering
// between severities is promised, but samples delivered to the same clone
// arrive in submission order.
type Sink[T any] interface {
	Info(extra T)
	Warning(extra T)
	Error(extra T)
	Clone() Sink[T]
	Close()
}

// ChannelSink is a Sink backed by a single buffered Go channel shared by
// every clone; Close is the responsibility of whichever owner coordinates
// the producers' lifetime (the HLS Processor), not of individual clones.
type ChannelSink[T any] struct {
	ch chan Record[T]
}

// New creates a ChannelSink and returns both the producer-facing Sink and
// the receive-only channel its consumer drains.
func New[T any](buffer int) (*ChannelSink[T], <-chan Record[T]) {
	ch := make(chan Record[T], buffer)
	return &ChannelSink[T]{ch: ch}, ch
}

func (s *ChannelSink[T]) emit(sev Severity, extra T) {
	s.ch <- Record[T]{Time: time.Now(), Severity: sev, Extra: extra}
}

func (s *ChannelSink[T]) Info(extra T)    { s.emit(Info, extra) }
func (s *ChannelSink[T]) Warning(extra T) { s.emit(Warning, extra) }
func (s *ChannelSink[T]) Error(extra T)   { s.emit(Error, extra) }

// Clone returns a handle sharing the same underlying channel, so a checker
// can retain its own handle without coupling to the owning Processor.
func (s *ChannelSink[T]) Clone() Sink[T] {
	return s
}

// Close consumes the sink, closing the underlying channel. Must be called
// exactly once, after every producer clone has stopped emitting.
func (s *ChannelSink[T]) Close() {
	close(s.ch)
}
