package hlsplaylist

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseMediaPlaylist incrementally parses a rendition playlist. Phase (a),
// lexical/structural validation, never aborts: non-fatal issues (a URI line
// with no preceding EXTINF) are appended to the returned playlist's
// Diagnostics and parsing continues. Phase (b), the semantic build, is
// fatal: a playlist missing EXT-X-TARGETDURATION or EXT-X-VERSION returns a
// *FatalError and no usable playlist.
func ParseMediaPlaylist(r io.Reader) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(r)
	const maxLineSize = 1 << 20
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	result := &MediaPlaylist{}
	sawHeader := false
	sawTargetDuration := false
	sawVersion := false

	var offset int
	var pending pendingSegment
	var nextMSN uint64
	msnSet := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		lineStart := offset
		offset += len(line) + 1 // +1 for the newline the scanner consumed

		if trimmed == "" {
			continue
		}

		switch {
		case trimmed == "#EXTM3U":
			sawHeader = true

		case strings.HasPrefix(trimmed, "#EXT-X-VERSION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(trimmed, "#EXT-X-VERSION:")); err == nil {
				result.Version = v
				sawVersion = true
			}

		case strings.HasPrefix(trimmed, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(trimmed, "#EXT-X-TARGETDURATION:")); err == nil {
				result.TargetDuration = time.Duration(v) * time.Second
				sawTargetDuration = true
			}

		case strings.HasPrefix(trimmed, "#EXT-X-MEDIA-SEQUENCE:"):
			if v, err := strconv.ParseUint(strings.TrimPrefix(trimmed, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64); err == nil {
				result.MediaSequence = v
				nextMSN = v
				msnSet = true
			}

		case trimmed == "#EXT-X-ENDLIST":
			result.HasEndList = true

		case trimmed == "#EXT-X-I-FRAMES-ONLY":
			result.HasIFramesOnly = true

		case trimmed == "#EXT-X-INDEPENDENT-SEGMENTS":
			result.HasIndependentSegments = true

		case strings.HasPrefix(trimmed, "#EXT-X-PLAYLIST-TYPE:"):
			switch strings.TrimPrefix(trimmed, "#EXT-X-PLAYLIST-TYPE:") {
			case "VOD":
				result.PlaylistType = PlaylistTypeVOD
			case "EVENT":
				result.PlaylistType = PlaylistTypeEvent
			}

		case trimmed == "#EXT-X-DISCONTINUITY":
			pending.discontinuity = true

		case strings.HasPrefix(trimmed, "#EXT-X-BYTERANGE:"):
			pending.byteRange = parseByteRange(strings.TrimPrefix(trimmed, "#EXT-X-BYTERANGE:"))

		case strings.HasPrefix(trimmed, "#EXT-X-PROGRAM-DATE-TIME:"):
			v := strings.TrimPrefix(trimmed, "#EXT-X-PROGRAM-DATE-TIME:")
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				pending.programDateTime = &t
			}

		case strings.HasPrefix(trimmed, "#EXT-X-DATERANGE:"):
			pending.dateRange = parseDateRange(strings.TrimPrefix(trimmed, "#EXT-X-DATERANGE:"))

		case strings.HasPrefix(trimmed, "#EXTINF:"):
			pending.have = true
			pending.duration = parseExtinfDuration(strings.TrimPrefix(trimmed, "#EXTINF:"))

		case strings.HasPrefix(trimmed, "#"):
			// Tags this parser doesn't act on (EXT-X-KEY, EXT-X-MAP, ...).

		default:
			if !pending.have {
				result.Diagnostics = append(result.Diagnostics, ParseError{
					Kind: UrlWithoutExtinf,
					URL:  trimmed,
					Span: Span{Start: lineStart, End: offset - 1},
				})
			}
			if !msnSet {
				msnSet = true
			}
			seg := Segment{
				MSN:              nextMSN,
				URI:              trimmed,
				Duration:         pending.duration,
				HasDiscontinuity: pending.discontinuity,
				ByteRange:        pending.byteRange,
				ProgramDateTime:  pending.programDateTime,
				DateRange:        pending.dateRange,
			}
			result.Segments = append(result.Segments, seg)
			nextMSN++
			pending = pendingSegment{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawHeader {
		return nil, &FatalError{Kind: NotExtM3U}
	}
	if !sawTargetDuration {
		return nil, &FatalError{Kind: MissingTargetDuration}
	}
	if !sawVersion {
		return nil, &FatalError{Kind: MissingVersion}
	}
	return result, nil
}

type pendingSegment struct {
	have            bool
	duration        time.Duration
	discontinuity   bool
	byteRange       *ByteRange
	programDateTime *time.Time
	dateRange       *DateRange
}

// parseExtinfDuration parses the "#EXTINF:<duration>,<title>" body,
// normalizing the duration to whole milliseconds so that
// ManifestHistoryChangedSegmentDuration compares at the precision the
// emitted events actually report, rather than at raw floating-point
// precision.
func parseExtinfDuration(body string) time.Duration {
	durStr, _, _ := strings.Cut(body, ",")
	f, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	if err != nil {
		return 0
	}
	return time.Duration(f*1000) * time.Millisecond
}

func parseByteRange(body string) *ByteRange {
	lengthStr, offsetStr, hasOffset := strings.Cut(body, "@")
	length, err := strconv.ParseUint(strings.TrimSpace(lengthStr), 10, 64)
	if err != nil {
		return nil
	}
	br := &ByteRange{Length: length}
	if hasOffset {
		if off, err := strconv.ParseUint(strings.TrimSpace(offsetStr), 10, 64); err == nil {
			br.Offset = &off
		}
	}
	return br
}

func parseDateRange(body string) *DateRange {
	attrs := parseAttrs(body)
	return &DateRange{
		ID:              attrs["ID"],
		Class:           attrs["CLASS"],
		StartDate:       attrs["START-DATE"],
		Duration:        attrs["DURATION"],
		PlannedDuration: attrs["PLANNED-DURATION"],
		EndDate:         attrs["END-DATE"],
		SCTECmd:         attrs["SCTE35-CMD"],
		SCTEOut:         attrs["SCTE35-OUT"],
		SCTEIn:          attrs["SCTE35-IN"],
		EndOnNext:       attrBool(attrs, "END-ON-NEXT"),
	}
}
