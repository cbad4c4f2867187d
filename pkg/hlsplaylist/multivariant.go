package hlsplaylist

import (
	"bufio"
	"io"
	"strings"
)

// ParseMultivariant parses a top-level #EXTM3U manifest into the list of
// variant streams and alternate renditions it advertises. It is consulted
// once per process, then discarded.
func ParseMultivariant(r io.Reader) (*MultivariantPlaylist, error) {
	scanner := bufio.NewScanner(r)
	const maxLineSize = 1 << 20
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	result := &MultivariantPlaylist{}
	sawHeader := false
	var pendingVariant *VariantStream

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "#EXTM3U":
			sawHeader = true

		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			bandwidth, _ := attrUint64(attrs, "BANDWIDTH")
			pendingVariant = &VariantStream{Bandwidth: bandwidth, Attributes: attrs}

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			result.Renditions = append(result.Renditions, Rendition{
				Type:       attrs["TYPE"],
				GroupID:    attrs["GROUP-ID"],
				Name:       attrs["NAME"],
				URI:        unquote(attrs["URI"]),
				Attributes: attrs,
			})

		case strings.HasPrefix(line, "#"):
			// Other tags (EXT-X-VERSION, EXT-X-INDEPENDENT-SEGMENTS, ...)
			// carry no information this parser's consumers need.

		default:
			if pendingVariant != nil {
				pendingVariant.URI = line
				result.Variants = append(result.Variants, *pendingVariant)
				pendingVariant = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, &FatalError{Kind: NotExtM3U}
	}
	return result, nil
}

// unquote strips a single layer of surrounding double quotes, returning s
// unchanged if it isn't quoted. parseAttrs already strips quotes for the
// common case; this handles attribute values captured without them.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
