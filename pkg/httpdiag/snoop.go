package httpdiag

// Snoop observes every completed HTTP attempt the Client makes, successful
// or not. It is a capability interface so a checker can retain its own
// handle via Clone without coupling to the Client's concrete type.
type Snoop interface {
	Snoop(ref HttpRef)
	Clone() Snoop
	Close()
}

// NopSnoop discards every observation. Useful in tests that only care about
// the Response/Error returned from Send, not the side-channel record.
type NopSnoop struct{}

func (NopSnoop) Snoop(HttpRef) {}
func (NopSnoop) Clone() Snoop  { return NopSnoop{} }
func (NopSnoop) Close()        {}

// CollectingSnoop accumulates every HttpRef it observes, for use in tests
// that assert on the transactions a run produced.
type CollectingSnoop struct {
	refs *[]HttpRef
}

// NewCollectingSnoop returns a snoop backed by a fresh slice.
func NewCollectingSnoop() *CollectingSnoop {
	refs := make([]HttpRef, 0)
	return &CollectingSnoop{refs: &refs}
}

func (s *CollectingSnoop) Snoop(ref HttpRef) {
	*s.refs = append(*s.refs, ref)
}

func (s *CollectingSnoop) Clone() Snoop {
	return &CollectingSnoop{refs: s.refs}
}

func (s *CollectingSnoop) Close() {}

// Refs returns every HttpRef observed so far.
func (s *CollectingSnoop) Refs() []HttpRef {
	return *s.refs
}
