package hlsplaylist

import "fmt"

// Span is a byte range into the parsed source text, enabling source-level
// diagnostics downstream.
type Span struct {
	Start int
	End   int
}

// ParseErrorKind enumerates the non-fatal diagnostics phase (a) of the media
// playlist parser can surface while still returning a usable partial
// result.
type ParseErrorKind int

const (
	// UrlWithoutExtinf means a URI line appeared with no preceding EXTINF.
	UrlWithoutExtinf ParseErrorKind = iota
)

// ParseError is one non-fatal diagnostic produced during structural
// validation. The polling loop surfaces each one as an event but continues
// parsing.
type ParseError struct {
	Kind ParseErrorKind
	URL  string
	Span Span
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case UrlWithoutExtinf:
		return fmt.Sprintf("url without preceding EXTINF: %q at %d-%d", e.URL, e.Span.Start, e.Span.End)
	default:
		return "playlist parse diagnostic"
	}
}

// FatalErrorKind enumerates the ways phase (b), the semantic build, can fail
// outright.
type FatalErrorKind int

const (
	// MissingTargetDuration means EXT-X-TARGETDURATION was absent.
	MissingTargetDuration FatalErrorKind = iota
	// MissingVersion means EXT-X-VERSION was absent.
	MissingVersion
	// MalformedTag means a required tag's value could not be parsed.
	MalformedTag
	// NotExtM3U means the source didn't begin with #EXTM3U.
	NotExtM3U
)

// FatalError terminates parsing: the playlist cannot be used at all.
type FatalError struct {
	Kind FatalErrorKind
	Msg  string
	Span Span
}

func (e *FatalError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("hlsplaylist: %s", e.Msg)
	}
	switch e.Kind {
	case MissingTargetDuration:
		return "hlsplaylist: missing required EXT-X-TARGETDURATION"
	case MissingVersion:
		return "hlsplaylist: missing required EXT-X-VERSION"
	case NotExtM3U:
		return "hlsplaylist: source does not begin with #EXTM3U"
	default:
		return "hlsplaylist: malformed tag"
	}
}
