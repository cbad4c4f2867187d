package httpdiag

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ExtraHeaderErrorKind enumerates why a "Name: Value" header definition
// supplied on the command line failed to parse.
type ExtraHeaderErrorKind int

const (
	// MissingColon means the definition contained no ":" separator.
	MissingColon ExtraHeaderErrorKind = iota
	// InvalidName means the text before the colon isn't a legal header name.
	InvalidName
	// InvalidValue means the text after the colon isn't a legal header value.
	InvalidValue
)

func (k ExtraHeaderErrorKind) String() string {
	switch k {
	case MissingColon:
		return `header definition should contain a colon ":"`
	case InvalidName:
		return "invalid header name"
	case InvalidValue:
		return "invalid header value"
	default:
		return "invalid header definition"
	}
}

// ExtraHeaderError reports a malformed --extra-header argument.
type ExtraHeaderError struct {
	Kind ExtraHeaderErrorKind
}

func (e *ExtraHeaderError) Error() string {
	return e.Kind.String()
}

// ExtraHeader is a single additional header a caller wants attached to every
// outgoing request.
type ExtraHeader struct {
	Name  string
	Value string
}

// ParseExtraHeader parses a "Name: Value" definition, trimming surrounding
// whitespace from both halves.
func ParseExtraHeader(s string) (ExtraHeader, error) {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return ExtraHeader{}, &ExtraHeaderError{Kind: MissingColon}
	}

	name = strings.TrimSpace(name)
	if name == "" || !httpguts.ValidHeaderFieldName(name) {
		return ExtraHeader{}, &ExtraHeaderError{Kind: InvalidName}
	}

	value = strings.TrimSpace(value)
	if !httpguts.ValidHeaderFieldValue(value) {
		return ExtraHeader{}, &ExtraHeaderError{Kind: InvalidValue}
	}

	return ExtraHeader{Name: name, Value: value}, nil
}
