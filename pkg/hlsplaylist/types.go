// Package hlsplaylist parses the #EXTM3U textual format used by both HLS
// multivariant (master) manifests and per-rendition media playlists.
package hlsplaylist

import "time"

// PlaylistType mirrors the EXT-X-PLAYLIST-TYPE tag.
type PlaylistType int

const (
	// PlaylistTypeNone means no EXT-X-PLAYLIST-TYPE tag was present.
	PlaylistTypeNone PlaylistType = iota
	PlaylistTypeEvent
	PlaylistTypeVOD
)

func (t PlaylistType) String() string {
	switch t {
	case PlaylistTypeEvent:
		return "EVENT"
	case PlaylistTypeVOD:
		return "VOD"
	default:
		return ""
	}
}

// ByteRange mirrors EXT-X-BYTERANGE: a length, and an optional explicit
// offset (absent means "immediately after the previous segment's range").
type ByteRange struct {
	Length uint64
	Offset *uint64
}

// DateRange mirrors one EXT-X-DATERANGE tag, carrying the attributes the
// Checker compares for stability across reloads.
type DateRange struct {
	ID              string
	Class           string
	StartDate       string
	Duration        string
	PlannedDuration string
	EndDate         string
	SCTECmd         string
	SCTEOut         string
	SCTEIn          string
	EndOnNext       bool
}

// Attr looks up a daterange attribute by the exact tag name the Checker
// compares (DURATION, START-DATE, PLANNED-DURATION, END-DATE, SCTE-CMD,
// SCTE-OUT, SCTE-IN). ok is false for any other name.
func (d *DateRange) Attr(name string) (string, bool) {
	switch name {
	case "DURATION":
		return d.Duration, true
	case "START-DATE":
		return d.StartDate, true
	case "PLANNED-DURATION":
		return d.PlannedDuration, true
	case "END-DATE":
		return d.EndDate, true
	case "SCTE-CMD":
		return d.SCTECmd, true
	case "SCTE-OUT":
		return d.SCTEOut, true
	case "SCTE-IN":
		return d.SCTEIn, true
	default:
		return "", false
	}
}

// ComparableAttrNames lists the daterange attributes the Checker watches for
// stability across reloads, in the order they are compared.
var ComparableAttrNames = []string{
	"DURATION", "START-DATE", "PLANNED-DURATION", "END-DATE",
	"SCTE-CMD", "SCTE-OUT", "SCTE-IN",
}

// Segment is one media-playlist entry.
type Segment struct {
	// MSN is the absolute, monotonically assigned media sequence number.
	MSN uint64
	URI string
	// Duration is normalized to whole milliseconds, so that
	// ManifestHistoryChangedSegmentDuration compares at the precision the
	// emitted events actually report.
	Duration        time.Duration
	HasDiscontinuity bool
	ByteRange       *ByteRange
	ProgramDateTime *time.Time
	DateRange       *DateRange
}

// VariantStream is one EXT-X-STREAM-INF entry in a multivariant manifest.
type VariantStream struct {
	URI        string
	Bandwidth  uint64
	Attributes map[string]string
}

// Rendition is one EXT-X-MEDIA entry in a multivariant manifest.
type Rendition struct {
	Type       string // AUDIO, VIDEO, SUBTITLES, CLOSED-CAPTIONS
	GroupID    string
	Name       string
	URI        string // empty when the rendition has no standalone playlist
	Attributes map[string]string
}

// MultivariantPlaylist is the parsed result of a top-level manifest.
type MultivariantPlaylist struct {
	Variants   []VariantStream
	Renditions []Rendition
}

// MediaPlaylist is one reload's worth of a rendition playlist.
type MediaPlaylist struct {
	TargetDuration          time.Duration
	MediaSequence           uint64
	Segments                []Segment
	HasEndList              bool
	PlaylistType            PlaylistType
	HasIFramesOnly          bool
	HasIndependentSegments  bool
	Version                 int
	Diagnostics             []ParseError
}

// LastSegment returns the last segment, or nil if the playlist is empty.
func (p *MediaPlaylist) LastSegment() *Segment {
	if len(p.Segments) == 0 {
		return nil
	}
	return &p.Segments[len(p.Segments)-1]
}
