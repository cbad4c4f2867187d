package httpdiag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorKind enumerates the transport-level failure classes a Send can
// produce.
type ErrorKind int

const (
	// RequestTimeout means the request exceeded its deadline.
	RequestTimeout ErrorKind = iota
	// RequestRedirect means the client's redirect policy rejected the chain.
	RequestRedirect
	// RequestDecode means the response body could not be decoded as text.
	RequestDecode
	// RequestBody means an I/O error occurred while streaming the body.
	RequestBody
	// RequestUnknownFault is any transport error that doesn't classify.
	RequestUnknownFault
	// Status means a 4xx/5xx response was explicitly rejected by the caller.
	Status
	// ResponseSizeExceedsLimit means the body exceeded the configured cap.
	ResponseSizeExceedsLimit
	// NumberOfRequestsExceedsLimit means the client-wide request cap was hit.
	NumberOfRequestsExceedsLimit
)

func (k ErrorKind) String() string {
	switch k {
	case RequestTimeout:
		return "RequestTimeout"
	case RequestRedirect:
		return "RequestRedirect"
	case RequestDecode:
		return "RequestDecode"
	case RequestBody:
		return "RequestBody"
	case RequestUnknownFault:
		return "RequestUnknownFault"
	case Status:
		return "Status"
	case ResponseSizeExceedsLimit:
		return "ResponseSizeExceedsLimit"
	case NumberOfRequestsExceedsLimit:
		return "NumberOfRequestsExceedsLimit"
	default:
		return "Unknown"
	}
}

// Error is the taxonomy of failures Send can return. Ref is the zero value
// for NumberOfRequestsExceedsLimit, and for the RequestUnknownFault returned
// when the request itself cannot be constructed: both fail before any
// request is attempted and therefore have no transaction to cite.
type Error struct {
	Kind  ErrorKind
	Ref   HttpRef
	Limit int64
	Max   uint64
	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ResponseSizeExceedsLimit:
		return fmt.Sprintf("httpdiag: response size exceeds limit of %d bytes", e.Limit)
	case NumberOfRequestsExceedsLimit:
		return fmt.Sprintf("httpdiag: number of requests exceeds limit of %d", e.Max)
	case Status:
		status := 0
		if info := e.Ref.Info(); info != nil && info.Response != nil {
			status = info.Response.Status
		}
		return fmt.Sprintf("httpdiag: response status %d", status)
	default:
		if e.cause != nil {
			return fmt.Sprintf("httpdiag: %s: %v", e.Kind, e.cause)
		}
		return fmt.Sprintf("httpdiag: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// classifyTransportError lowers a raw net/http client error into the
// transport-level taxonomy. An unrecognized failure becomes
// RequestUnknownFault rather than being discarded.
func classifyTransportError(err error) ErrorKind {
	if err == nil {
		return RequestUnknownFault
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return RequestTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return RequestTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return RequestTimeout
		}
		if isRedirectError(urlErr) {
			return RequestRedirect
		}
	}
	return RequestUnknownFault
}

// isRedirectError recognizes the errors net/http.Client returns when its
// redirect policy rejects a chain (too many redirects, or a user-supplied
// CheckRedirect hook returning http.ErrUseLastResponse's sibling errors).
func isRedirectError(urlErr *url.Error) bool {
	if urlErr.Err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(urlErr.Err.Error()), "redirect")
}
