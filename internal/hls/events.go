package hls

import "github.com/dholroyd/strck/pkg/httpdiag"

// Event is the sealed set of findings the Checker and Processor can emit.
// Each concrete type carries the HttpRefs and literal values needed to
// reproduce the finding; EventName reports the snake_case tag an
// EventSink consumer uses to route/serialize it.
type Event interface {
	EventName() string
}

type LoadedMain struct {
	ReqID        httpdiag.HttpRef
	VariantCount int
}

func (LoadedMain) EventName() string { return "loaded_main" }

type MsnGoneBackwards struct {
	Delta   httpdiag.Delta
	LastMSN uint64
	ThisMSN uint64
}

func (MsnGoneBackwards) EventName() string { return "msn_gone_backwards" }

// EndListTagRemoved fires when the earlier playlist had EXT-X-ENDLIST but
// the current one no longer does.
type EndListTagRemoved struct{}

func (EndListTagRemoved) EventName() string { return "end_list_tag_removed" }

type UnexpectedPlaylistPropertyAddition struct {
	Delta httpdiag.Delta
	Name  string
}

func (UnexpectedPlaylistPropertyAddition) EventName() string {
	return "unexpected_playlist_property_addition"
}

type UnexpectedPlaylistPropertyRemoval struct {
	Delta httpdiag.Delta
	Name  string
}

func (UnexpectedPlaylistPropertyRemoval) EventName() string {
	return "unexpected_playlist_property_removal"
}

type TargetDurationChanged struct {
	Delta                     httpdiag.Delta
	LastTargetDurationMillis uint64
	ThisTargetDurationMillis uint64
}

func (TargetDurationChanged) EventName() string { return "target_duration_changed" }

// PlaylistTypeChanged exists in the taxonomy but is suppressed by the
// Checker (see the PlaylistTypeChanged design decision in DESIGN.md); it is still a
// constructible event type so a future caller can choose to re-enable it.
type PlaylistTypeChanged struct {
	Delta    httpdiag.Delta
	LastType string
	ThisType string
}

func (PlaylistTypeChanged) EventName() string { return "playlist_type_changed" }

type ManifestHistoryChangedUri struct {
	Delta   httpdiag.Delta
	MSN     uint64
	LastURI string
	ThisURI string
}

func (ManifestHistoryChangedUri) EventName() string { return "manifest_history_changed_uri" }

type ManifestHistoryAddedDiscontinuity struct {
	Delta httpdiag.Delta
	MSN   uint64
}

func (ManifestHistoryAddedDiscontinuity) EventName() string {
	return "manifest_history_added_discontinuity"
}

type ManifestHistoryRemovedDiscontinuity struct {
	Delta httpdiag.Delta
	MSN   uint64
}

func (ManifestHistoryRemovedDiscontinuity) EventName() string {
	return "manifest_history_removed_discontinuity"
}

type ManifestHistoryChangedSegmentDuration struct {
	Delta              httpdiag.Delta
	MSN                uint64
	LastDurationMillis int64
	ThisDurationMillis int64
}

func (ManifestHistoryChangedSegmentDuration) EventName() string {
	return "manifest_history_changed_segment_duration"
}

type ManifestHistoryChangedSegmentByterange struct {
	Delta         httpdiag.Delta
	MSN           uint64
	LastByterange string
	ThisByterange string
}

func (ManifestHistoryChangedSegmentByterange) EventName() string {
	return "manifest_history_changed_segment_byterange"
}

type LiveSegmentsRemoved struct {
	Delta        httpdiag.Delta
	LastMSN      uint64
	ThisMSN      uint64
	RemovedCount uint64
}

func (LiveSegmentsRemoved) EventName() string { return "live_segments_removed" }

type ManifestStale struct {
	Delta            httpdiag.Delta
	SinceLastUpdate int
}

func (ManifestStale) EventName() string { return "manifest_stale" }

// End fires when EXT-X-ENDLIST is first observed.
type End struct {
	ReqID httpdiag.HttpRef
}

func (End) EventName() string { return "end" }

type SlowMediaManifestResponse struct {
	ReqID                 httpdiag.HttpRef
	ResponseTimeMillis    int64
	TargetDurationMillis int64
}

func (SlowMediaManifestResponse) EventName() string { return "slow_media_manifest_response" }

type CachedTooLong struct {
	ReqID          httpdiag.HttpRef
	AgeSeconds     int64
	TargetDuration int64
}

func (CachedTooLong) EventName() string { return "cached_too_long" }

// LastModifiedInFuture is supplemented per SPEC_FULL.md: it was present in
// the taxonomy but unreachable in the source this was grounded on.
type LastModifiedInFuture struct {
	ReqID        httpdiag.HttpRef
	Date         string
	LastModified string
}

func (LastModifiedInFuture) EventName() string { return "last_modified_in_future" }

type IncorrectContentType struct {
	ReqID       httpdiag.HttpRef
	ContentType string
}

func (IncorrectContentType) EventName() string { return "incorrect_content_type" }

type ContentTypeChanged struct {
	Delta            httpdiag.Delta
	LastContentType string
	ThisContentType string
}

func (ContentTypeChanged) EventName() string { return "content_type_changed" }

type HttpErrorStatus struct {
	ReqID      httpdiag.HttpRef
	StatusCode int
}

func (HttpErrorStatus) EventName() string { return "http_error_status" }

type HttpUnknownError struct{ ReqID httpdiag.HttpRef }

func (HttpUnknownError) EventName() string { return "http_unknown_error" }

type HttpBodyError struct{ ReqID httpdiag.HttpRef }

func (HttpBodyError) EventName() string { return "http_body_error" }

type HttpDecodeError struct{ ReqID httpdiag.HttpRef }

func (HttpDecodeError) EventName() string { return "http_decode_error" }

type HttpRedirectError struct{ ReqID httpdiag.HttpRef }

func (HttpRedirectError) EventName() string { return "http_redirect_error" }

type HttpTimeout struct{ ReqID httpdiag.HttpRef }

func (HttpTimeout) EventName() string { return "http_timeout" }

type PlaylistUtf8Error struct{ ReqID httpdiag.HttpRef }

func (PlaylistUtf8Error) EventName() string { return "playlist_utf8_error" }

type PlaylistParseError struct{ ReqID httpdiag.HttpRef }

func (PlaylistParseError) EventName() string { return "playlist_parse_error" }

type PlaylistMalformedUrl struct{ ReqID httpdiag.HttpRef }

func (PlaylistMalformedUrl) EventName() string { return "playlist_malformed_url" }

type ResponseSizeExceedsLimit struct {
	ReqID httpdiag.HttpRef
	Limit int64
}

func (ResponseSizeExceedsLimit) EventName() string { return "response_size_exceeds_limit" }

type NumberOfRequestsExceedsLimit struct {
	Limit uint64
}

func (NumberOfRequestsExceedsLimit) EventName() string { return "number_of_requests_exceeds_limit" }

type MediaPlaylistWithoutExtinf struct {
	ReqID httpdiag.HttpRef
	URL   string
	Start int
	End   int
}

func (MediaPlaylistWithoutExtinf) EventName() string { return "media_playlist_without_extinf" }

type LastModifiedChangedButBodiesIdentical struct {
	Delta             httpdiag.Delta
	ThisLastModified string
	LastLastModified string
}

func (LastModifiedChangedButBodiesIdentical) EventName() string {
	return "last_modified_changed_but_bodies_identical"
}

// MissedLastModifiedResponse fires when the server should have returned 304
// based on matching cache validators but didn't.
type MissedLastModifiedResponse struct {
	Delta httpdiag.Delta
}

func (MissedLastModifiedResponse) EventName() string { return "missed_last_modified_response" }

type DaterangeAttributeChanged struct {
	ReqID       httpdiag.HttpRef
	DaterangeID string
	AttrName    string
	PrevValue   string
	ThisValue   string
}

func (DaterangeAttributeChanged) EventName() string { return "daterange_attribute_changed" }
