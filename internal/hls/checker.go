package hls

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dholroyd/strck/internal/eventsink"
	"github.com/dholroyd/strck/internal/metricchan"
	"github.com/dholroyd/strck/pkg/hlsplaylist"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

// staleWarnAfter and staleErrorAfter are the since_last_update thresholds
// at which a live playlist whose final segment stops advancing escalates
// from a warning to an error.
const (
	staleWarnAfter  = 2
	staleErrorAfter = 3
)

// Checker is the differential conformance analyzer for one media
// playlist URL: it holds exactly the state needed to compare the
// playlist just fetched against the one fetched before it.
type Checker struct {
	sink          eventsink.Sink[Event]
	msnRegression *metricchan.Channel
	timeline      *Timeline
	logger        *slog.Logger

	haveInitial      bool
	prev             *hlsplaylist.MediaPlaylist
	prevRef          httpdiag.HttpRef
	prevHash         uint64
	prevContentType  string
	prevETag         string
	prevLastModified string
	prevDateranges   map[string]*hlsplaylist.DateRange
	sinceLastUpdate  int
	reportedEnd      bool
	finalMSN         uint64
	haveFinalMSN     bool
}

// NewChecker constructs a Checker for a single media playlist URL. sink
// and msnRegression may be shared clones of channels owned by the
// Processor coordinating every URL being polled.
func NewChecker(sink eventsink.Sink[Event], msnRegression *metricchan.Channel, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		sink:          sink,
		msnRegression: msnRegression,
		timeline:      NewTimeline(logger),
		logger:        logger,
	}
}

// NextPlaylist records a freshly parsed playlist retrieved at ref,
// running the full differential analysis against whatever was recorded
// by the previous call.
func (c *Checker) NextPlaylist(ref httpdiag.HttpRef, resp *httpdiag.Response, pl *hlsplaylist.MediaPlaylist) {
	c.checkHeaders(ref, resp)

	var hash uint64
	var contentType, etag string
	if resp != nil {
		hash = resp.Hash()
		contentType = resp.Header("Content-Type")
		etag = resp.Header("ETag")
	}

	if !c.haveInitial {
		c.checkInitialConfiguration(pl)
		c.updateTimeline(pl)
		c.captureDateranges(pl)
		c.prev = pl
		c.prevRef = ref
		c.prevHash = hash
		c.prevContentType = contentType
		c.prevETag = etag
		c.haveInitial = true
		c.sinceLastUpdate = 0
		if last := pl.LastSegment(); last != nil {
			c.finalMSN = last.MSN
			c.haveFinalMSN = true
		}
		if resp != nil {
			c.prevLastModified = resp.Header("Last-Modified")
		}
		if pl.HasEndList {
			c.reportedEnd = true
			c.sink.Info(End{ReqID: ref})
		}
		return
	}

	delta := httpdiag.Delta{Before: c.prevRef, After: ref}

	if resp != nil && hash == c.prevHash {
		c.checkLastModifiedChangedButBodiesIdentical(delta, ref, resp)
	}
	c.checkMissedLastModifiedResponse(delta, resp)

	c.checkInvariantProperties(delta, c.prev, pl, c.prevContentType, contentType)
	truncated := c.checkUpdate(delta, c.prev, pl)
	if !truncated {
		c.checkStaleness(delta, pl)
	}
	c.updateTimeline(pl)
	c.checkDaterange(ref, pl)
	c.captureDateranges(pl)

	if pl.HasEndList && !c.reportedEnd {
		c.reportedEnd = true
		c.sink.Info(End{ReqID: ref})
	}

	c.prev = pl
	c.prevRef = ref
	c.prevHash = hash
	c.prevContentType = contentType
	c.prevETag = etag
	if resp != nil {
		c.prevLastModified = resp.Header("Last-Modified")
	}
}

// NotModified records a 304 response: the server asserts nothing
// changed. Per the state machine this only advances since_last_update;
// the staleness threshold is evaluated against final_msn the next time a
// fresh body actually arrives.
func (c *Checker) NotModified(ref httpdiag.HttpRef) {
	c.sinceLastUpdate++
}

// ErrorStatus and Timeout let the poller report a failed attempt without
// advancing the checker's notion of the last successfully seen playlist;
// the staleness clock keeps ticking regardless of why no fresh body
// arrived.
func (c *Checker) ErrorStatus(ref httpdiag.HttpRef) {
	c.sinceLastUpdate++
}

func (c *Checker) Timeout(ref httpdiag.HttpRef) {
	c.sinceLastUpdate++
}

func (c *Checker) checkInitialConfiguration(pl *hlsplaylist.MediaPlaylist) {
	if pl.TargetDuration <= 0 {
		c.logger.Warn("media playlist has zero or negative target duration")
	}
}

func (c *Checker) checkHeaders(ref httpdiag.HttpRef, resp *httpdiag.Response) {
	if resp == nil {
		return
	}
	ct := resp.Header("Content-Type")
	if ct != "" && !isAcceptableM3U8ContentType(ct) {
		c.sink.Warning(IncorrectContentType{ReqID: ref, ContentType: ct})
	}
	lastModified := resp.Header("Last-Modified")
	date := resp.Header("Date")
	if lastModified != "" && date != "" {
		lm, errLM := http_parseTime(lastModified)
		d, errD := http_parseTime(date)
		if errLM == nil && errD == nil && lm.After(d) {
			c.sink.Warning(LastModifiedInFuture{ReqID: ref, Date: date, LastModified: lastModified})
		}
	}
}

func isAcceptableM3U8ContentType(ct string) bool {
	switch ct {
	case "application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl":
		return true
	default:
		return false
	}
}

func http_parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC1123, v)
}

// checkStaleness implements the staleness check: a live playlist whose
// final segment's MSN fails to advance across reloads is reported as a
// warning once since_last_update reaches staleWarnAfter, escalating to an
// error once it exceeds staleErrorAfter.
func (c *Checker) checkStaleness(delta httpdiag.Delta, this *hlsplaylist.MediaPlaylist) {
	if this.HasEndList {
		c.sinceLastUpdate = 0
		if last := this.LastSegment(); last != nil {
			c.finalMSN = last.MSN
			c.haveFinalMSN = true
		}
		return
	}

	last := this.LastSegment()
	if last == nil {
		return
	}

	if c.haveFinalMSN && last.MSN == c.finalMSN {
		c.sinceLastUpdate++
	} else {
		c.sinceLastUpdate = 0
		c.finalMSN = last.MSN
		c.haveFinalMSN = true
	}

	switch {
	case c.sinceLastUpdate > staleErrorAfter:
		c.sink.Error(ManifestStale{Delta: delta, SinceLastUpdate: c.sinceLastUpdate})
	case c.sinceLastUpdate >= staleWarnAfter:
		c.sink.Warning(ManifestStale{Delta: delta, SinceLastUpdate: c.sinceLastUpdate})
	}
}

// checkMissedLastModifiedResponse flags a fresh (non-304) body whose cache
// validators still match the previous response: the server should have
// answered with 304 Not Modified instead of resending the playlist.
func (c *Checker) checkMissedLastModifiedResponse(delta httpdiag.Delta, resp *httpdiag.Response) {
	if resp == nil || resp.Status() == http.StatusNotModified {
		return
	}
	if c.prevETag == "" && c.prevLastModified == "" {
		return
	}
	etag := resp.Header("ETag")
	lm := resp.Header("Last-Modified")
	matched := (etag != "" && etag == c.prevETag) || (lm != "" && lm == c.prevLastModified)
	if matched {
		c.sink.Warning(MissedLastModifiedResponse{Delta: delta})
	}
}

// checkInvariantProperties implements the invariant-properties checks:
// has_i_frames_only, has_independent_segments and the response
// Content-Type must not change between snapshots of a live playlist.
func (c *Checker) checkInvariantProperties(delta httpdiag.Delta, prev, this *hlsplaylist.MediaPlaylist, prevContentType, thisContentType string) {
	c.checkPropertyToggle(delta, "EXT-X-I-FRAMES-ONLY", prev.HasIFramesOnly, this.HasIFramesOnly)
	c.checkPropertyToggle(delta, "EXT-X-INDEPENDENT-SEGMENTS", prev.HasIndependentSegments, this.HasIndependentSegments)

	if prevContentType != "" && thisContentType != "" && prevContentType != thisContentType {
		c.sink.Error(ContentTypeChanged{Delta: delta, LastContentType: prevContentType, ThisContentType: thisContentType})
	}
}

func (c *Checker) checkPropertyToggle(delta httpdiag.Delta, name string, prevVal, thisVal bool) {
	if prevVal == thisVal {
		return
	}
	if thisVal {
		c.sink.Error(UnexpectedPlaylistPropertyAddition{Delta: delta, Name: name})
	} else {
		c.sink.Error(UnexpectedPlaylistPropertyRemoval{Delta: delta, Name: name})
	}
}

// checkLastModifiedChangedButBodiesIdentical flags a server that bumps
// Last-Modified on a response whose body fingerprint didn't actually
// change, which breaks conditional-GET caching for every downstream
// client relying on that validator.
func (c *Checker) checkLastModifiedChangedButBodiesIdentical(delta httpdiag.Delta, ref httpdiag.HttpRef, resp *httpdiag.Response) {
	lm := resp.Header("Last-Modified")
	if lm == "" || c.prevLastModified == "" || lm == c.prevLastModified {
		return
	}
	c.sink.Warning(LastModifiedChangedButBodiesIdentical{
		Delta: delta, ThisLastModified: lm, LastLastModified: c.prevLastModified,
	})
}

// checkUpdate runs the per-update checks against two successive
// snapshots, returning true when this update truncated live segments out
// from under the viewer. On truncation the caller skips the
// manifest-history-invariant and staleness checks for this tick, since
// the overlapping window the history check relies on no longer holds the
// meaning those checks assume.
func (c *Checker) checkUpdate(delta httpdiag.Delta, prev, this *hlsplaylist.MediaPlaylist) bool {
	if prev.HasEndList && !this.HasEndList {
		c.sink.Error(EndListTagRemoved{})
	}

	if prev.TargetDuration != this.TargetDuration {
		c.sink.Error(TargetDurationChanged{
			Delta:                    delta,
			LastTargetDurationMillis: uint64(prev.TargetDuration / time.Millisecond),
			ThisTargetDurationMillis: uint64(this.TargetDuration / time.Millisecond),
		})
	}

	lastMSN := prev.MediaSequence
	thisMSN := this.MediaSequence
	if thisMSN < lastMSN {
		c.sink.Error(MsnGoneBackwards{Delta: delta, LastMSN: lastMSN, ThisMSN: thisMSN})
		if c.msnRegression != nil {
			c.msnRegression.Put(int64(lastMSN - thisMSN))
		}
	}

	prevLast, thisLast := prev.LastSegment(), this.LastSegment()
	if prevLast != nil && thisLast != nil && prevLast.MSN > thisLast.MSN {
		removed := prevLast.MSN - thisLast.MSN
		event := LiveSegmentsRemoved{Delta: delta, LastMSN: prevLast.MSN, ThisMSN: thisLast.MSN, RemovedCount: removed}
		if removed > 1 {
			c.sink.Error(event)
		} else {
			c.sink.Warning(event)
		}
		return true
	}

	c.checkManifestHistoryInvariant(delta, prev, this)
	return false
}

// checkManifestHistoryInvariant compares the overlapping window of media
// sequence numbers present in both playlists: anything the server
// reported before about a still-present segment must not change.
func (c *Checker) checkManifestHistoryInvariant(delta httpdiag.Delta, prev, this *hlsplaylist.MediaPlaylist) {
	prevByMSN := make(map[uint64]*hlsplaylist.Segment, len(prev.Segments))
	for i := range prev.Segments {
		s := &prev.Segments[i]
		prevByMSN[s.MSN] = s
	}
	for i := range this.Segments {
		cur := &this.Segments[i]
		old, ok := prevByMSN[cur.MSN]
		if !ok {
			continue
		}
		c.checkSegmentInvariant(delta, old, cur)
	}
}

func (c *Checker) checkSegmentInvariant(delta httpdiag.Delta, old, cur *hlsplaylist.Segment) {
	if old.URI != cur.URI {
		c.sink.Error(ManifestHistoryChangedUri{Delta: delta, MSN: cur.MSN, LastURI: old.URI, ThisURI: cur.URI})
		return
	}
	if old.Duration != cur.Duration {
		c.sink.Warning(ManifestHistoryChangedSegmentDuration{
			Delta: delta, MSN: cur.MSN,
			LastDurationMillis: int64(old.Duration / time.Millisecond),
			ThisDurationMillis: int64(cur.Duration / time.Millisecond),
		})
	}
	if !old.HasDiscontinuity && cur.HasDiscontinuity {
		c.sink.Error(ManifestHistoryAddedDiscontinuity{Delta: delta, MSN: cur.MSN})
	}
	if old.HasDiscontinuity && !cur.HasDiscontinuity {
		c.sink.Error(ManifestHistoryRemovedDiscontinuity{Delta: delta, MSN: cur.MSN})
	}
	oldBR, curBR := byteRangeString(old.ByteRange), byteRangeString(cur.ByteRange)
	if oldBR != curBR {
		c.sink.Error(ManifestHistoryChangedSegmentByterange{Delta: delta, MSN: cur.MSN, LastByterange: oldBR, ThisByterange: curBR})
	}
}

func byteRangeString(br *hlsplaylist.ByteRange) string {
	if br == nil {
		return ""
	}
	if br.Offset != nil {
		return fmt.Sprintf("%d@%d", br.Length, *br.Offset)
	}
	return fmt.Sprintf("%d", br.Length)
}

func (c *Checker) updateTimeline(pl *hlsplaylist.MediaPlaylist) {
	if len(pl.Segments) > 0 {
		c.timeline.RemoveOlderThan(pl.Segments[0].MSN)
	}
	var knownLast uint64
	seqs := c.timeline.Sequences()
	haveKnown := len(seqs) > 0
	if haveKnown {
		knownLast = seqs[len(seqs)-1].LastMSN
	}
	for _, s := range pl.Segments {
		if haveKnown && s.MSN <= knownLast {
			continue
		}
		c.timeline.AppendSegment(s.MSN, s.HasDiscontinuity)
	}
}

// captureDateranges snapshots the current playlist's EXT-X-DATERANGE tags
// by ID so the next update can diff against them.
func (c *Checker) captureDateranges(pl *hlsplaylist.MediaPlaylist) {
	m := make(map[string]*hlsplaylist.DateRange)
	for i := range pl.Segments {
		if dr := pl.Segments[i].DateRange; dr != nil && dr.ID != "" {
			m[dr.ID] = dr
		}
	}
	c.prevDateranges = m
}

// checkDaterange enforces that the comparable attributes of an
// EXT-X-DATERANGE already reported under a given ID never change on a
// later poll; only new attributes being filled in (e.g. END-DATE
// arriving later) are permitted implicitly, since the attribute reads as
// empty before it appears.
func (c *Checker) checkDaterange(ref httpdiag.HttpRef, pl *hlsplaylist.MediaPlaylist) {
	if c.prevDateranges == nil {
		return
	}
	for i := range pl.Segments {
		dr := pl.Segments[i].DateRange
		if dr == nil || dr.ID == "" {
			continue
		}
		prev, ok := c.prevDateranges[dr.ID]
		if !ok {
			continue
		}
		c.checkDaterangeAttrInvariants(ref, dr.ID, prev, dr)
	}
}

func (c *Checker) checkDaterangeAttrInvariants(ref httpdiag.HttpRef, id string, prev, this *hlsplaylist.DateRange) {
	for _, name := range hlsplaylist.ComparableAttrNames {
		prevVal, prevOK := prev.Attr(name)
		thisVal, thisOK := this.Attr(name)
		if !prevOK || prevVal == "" {
			continue
		}
		if thisOK && thisVal != prevVal {
			c.sink.Error(DaterangeAttributeChanged{
				ReqID: ref, DaterangeID: id, AttrName: name, PrevValue: prevVal, ThisValue: thisVal,
			})
		}
	}
}
