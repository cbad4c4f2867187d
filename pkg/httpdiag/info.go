// Package httpdiag wraps net/http with an immutable, addressable transaction
// record for every request it issues, so that later conformance findings can
// cite the exact HTTP interaction that produced them.
package httpdiag

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/netip"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// liveCount tracks the number of HttpInfo records currently reachable, for
// leak detection in tests. Go is garbage collected, so there is no Drop to
// hook into; a finalizer decrements the counter when a record becomes
// unreachable, mirroring the reference-counted release of the original.
var liveCount int64

// LiveCount returns the number of HttpInfo records not yet collected.
func LiveCount() int64 {
	return atomic.LoadInt64(&liveCount)
}

// BodyInfo holds the accumulated response payload and its fingerprint.
type BodyInfo struct {
	Data []byte
	Hash uint64
}

// HttpResponseInfo is the terminal, successful half of an HttpInfo: a
// response was received from the peer, though reading its body may itself
// have failed (e.g. ResponseSizeExceedsLimit).
type HttpResponseInfo struct {
	Status     int
	Headers    http.Header
	Proto      string
	RemoteAddr netip.AddrPort
	Body       *BodyInfo
	BodyErr    error
}

// Hash returns the response body's fingerprint, or false if the body could
// not be read.
func (r *HttpResponseInfo) Hash() (uint64, bool) {
	if r.Body == nil {
		return 0, false
	}
	return r.Body.Hash, true
}

// HttpInfo is an immutable record of one completed HTTP transaction attempt.
// It is never mutated after construction; every event that cites this
// transaction holds a cheap reference to the same record.
type HttpInfo struct {
	ID              uuid.UUID
	URL             string
	Time            time.Time
	TimeTotal       time.Duration
	TimePretransfer *time.Duration
	ContentRole     string

	Response     *HttpResponseInfo
	TransportErr error
}

func newHttpInfo(info *HttpInfo) *HttpInfo {
	atomic.AddInt64(&liveCount, 1)
	runtime.SetFinalizer(info, func(*HttpInfo) {
		atomic.AddInt64(&liveCount, -1)
	})
	return info
}

// HttpRef is a cheaply cloneable handle to an HttpInfo. Copying an HttpRef
// copies only the pointer; the underlying record is shared and never
// mutated.
type HttpRef struct {
	inner *HttpInfo
}

// ID returns the per-request unique id.
func (r HttpRef) ID() uuid.UUID {
	if r.inner == nil {
		return uuid.Nil
	}
	return r.inner.ID
}

// Info returns the underlying immutable transaction record.
func (r HttpRef) Info() *HttpInfo {
	return r.inner
}

// IsZero reports whether this HttpRef carries no transaction.
func (r HttpRef) IsZero() bool {
	return r.inner == nil
}

// String renders the reference in the wire form used by emitted events:
// "<unix-millis>/<base64-uuid>".
func (r HttpRef) String() string {
	if r.inner == nil {
		return ""
	}
	millis := r.inner.Time.UnixMilli()
	id := base64.RawURLEncoding.EncodeToString(r.inner.ID[:])
	return fmt.Sprintf("%d/%s", millis, id)
}

// MarshalJSON serializes an HttpRef as its wire string form.
func (r HttpRef) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// newHttpRef constructs the HttpRef for a completed attempt, bumping the
// live-record counter.
func newHttpRef(info *HttpInfo) HttpRef {
	return HttpRef{inner: newHttpInfo(info)}
}

// Delta pairs the HttpRefs either side of a cross-snapshot comparison, used
// by update-check events that compare a previous snapshot against the
// current one.
type Delta struct {
	Before HttpRef
	After  HttpRef
}
