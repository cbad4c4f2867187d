package hls

import (
	"errors"
	"fmt"

	"github.com/dholroyd/strck/pkg/httpdiag"
)

// ManifestErrorKind classifies a failed manifest load at the playlist
// level, after an in-band 304 has already been filtered out as
// errNotModified rather than surfaced here.
type ManifestErrorKind int

const (
	HttpTimeoutKind ManifestErrorKind = iota
	HttpStatusKind
	HttpBodyKind
	HttpDecodeKind
	HttpRedirectKind
	HttpUnknownFailureKind
	Utf8Kind
	ParseKind
	UrlKind
	ResponseSizeExceedsLimitKind
	NumberOfRequestsExceedsLimitKind
)

func (k ManifestErrorKind) String() string {
	switch k {
	case HttpTimeoutKind:
		return "http_timeout"
	case HttpStatusKind:
		return "http_status"
	case HttpBodyKind:
		return "http_body"
	case HttpDecodeKind:
		return "http_decode"
	case HttpRedirectKind:
		return "http_redirect"
	case HttpUnknownFailureKind:
		return "http_unknown_failure"
	case Utf8Kind:
		return "utf8"
	case ParseKind:
		return "parse"
	case UrlKind:
		return "url"
	case ResponseSizeExceedsLimitKind:
		return "response_size_exceeds_limit"
	case NumberOfRequestsExceedsLimitKind:
		return "number_of_requests_exceeds_limit"
	default:
		return "unknown"
	}
}

// ManifestError is the playlist-level error taxonomy a poller deals in: it
// is produced either by classifying a failed httpdiag.Response, or
// directly when a manifest loaded successfully over HTTP but failed to
// parse or resolve.
type ManifestError struct {
	Kind       ManifestErrorKind
	ReqID      httpdiag.HttpRef
	StatusCode int
	Limit      int64
	cause      error
}

func (e *ManifestError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *ManifestError) Unwrap() error { return e.cause }

// errNotModified is an in-band sentinel: a conditional GET returning 304
// is not a failure, but it also isn't a fresh manifest body, so it is
// threaded back to the poller loop as an error value it special-cases
// before it ever reaches the checker or the event sink.
var errNotModified = errors.New("not modified")

// fromHttpError classifies a transport/status failure already observed on
// an httpdiag.Response or surfaced as an *httpdiag.Error, mapping each
// transport-level ErrorKind onto the narrower playlist-level taxonomy.
func fromHttpError(ref httpdiag.HttpRef, err error) *ManifestError {
	var hderr *httpdiag.Error
	if errors.As(err, &hderr) {
		switch hderr.Kind {
		case httpdiag.RequestTimeout:
			return &ManifestError{Kind: HttpTimeoutKind, ReqID: ref, cause: err}
		case httpdiag.RequestRedirect:
			return &ManifestError{Kind: HttpRedirectKind, ReqID: ref, cause: err}
		case httpdiag.RequestDecode:
			return &ManifestError{Kind: HttpDecodeKind, ReqID: ref, cause: err}
		case httpdiag.RequestBody:
			return &ManifestError{Kind: HttpBodyKind, ReqID: ref, cause: err}
		case httpdiag.Status:
			status := 0
			if info := hderr.Ref.Info(); info != nil && info.Response != nil {
				status = info.Response.Status
			}
			return &ManifestError{Kind: HttpStatusKind, ReqID: ref, StatusCode: status, cause: err}
		case httpdiag.ResponseSizeExceedsLimit:
			return &ManifestError{Kind: ResponseSizeExceedsLimitKind, ReqID: ref, Limit: hderr.Limit, cause: err}
		case httpdiag.NumberOfRequestsExceedsLimit:
			return &ManifestError{Kind: NumberOfRequestsExceedsLimitKind, ReqID: ref, Limit: int64(hderr.Max), cause: err}
		default:
			return &ManifestError{Kind: HttpUnknownFailureKind, ReqID: ref, cause: err}
		}
	}
	return &ManifestError{Kind: HttpUnknownFailureKind, ReqID: ref, cause: err}
}

// fromStatus builds a ManifestError directly from a non-2xx status
// observed on an otherwise successful transport round trip.
func fromStatus(ref httpdiag.HttpRef, status int) *ManifestError {
	return &ManifestError{Kind: HttpStatusKind, ReqID: ref, StatusCode: status,
		cause: fmt.Errorf("unexpected status %d", status)}
}

// toEvent converts a ManifestError into the Event a poller logs through
// the EventSink. NumberOfRequestsExceedsLimit and ResponseSizeExceedsLimit
// carry a Limit rather than a status code, HttpStatusKind carries the status
// code, and every other kind carries only the failing request's ref.
func (e *ManifestError) toEvent() Event {
	switch e.Kind {
	case HttpTimeoutKind:
		return HttpTimeout{ReqID: e.ReqID}
	case HttpStatusKind:
		return HttpErrorStatus{ReqID: e.ReqID, StatusCode: e.StatusCode}
	case HttpBodyKind:
		return HttpBodyError{ReqID: e.ReqID}
	case HttpDecodeKind:
		return HttpDecodeError{ReqID: e.ReqID}
	case HttpRedirectKind:
		return HttpRedirectError{ReqID: e.ReqID}
	case Utf8Kind:
		return PlaylistUtf8Error{ReqID: e.ReqID}
	case ParseKind:
		return PlaylistParseError{ReqID: e.ReqID}
	case UrlKind:
		return PlaylistMalformedUrl{ReqID: e.ReqID}
	case ResponseSizeExceedsLimitKind:
		return ResponseSizeExceedsLimit{ReqID: e.ReqID, Limit: e.Limit}
	case NumberOfRequestsExceedsLimitKind:
		return NumberOfRequestsExceedsLimit{Limit: uint64(e.Limit)}
	default:
		return HttpUnknownError{ReqID: e.ReqID}
	}
}
