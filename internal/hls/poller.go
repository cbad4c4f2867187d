package hls

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dholroyd/strck/internal/eventsink"
	"github.com/dholroyd/strck/internal/metricchan"
	"github.com/dholroyd/strck/pkg/hlsplaylist"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

// maxSequentialPlaylistLoadErrorCount bounds how many consecutive failed
// polls a URL tolerates before the poller gives up on it entirely, so a
// permanently dead rendition doesn't spin forever.
const maxSequentialPlaylistLoadErrorCount = 100

// fallbackErrorDelay is used between retries once a poll has failed and no
// target-duration-derived delay is yet known.
const fallbackErrorDelay = 5 * time.Second

// pollerState is the conditional-GET and pacing state carried between
// successive polls of one media playlist URL.
type pollerState struct {
	url              string
	delay            time.Duration
	hasDelay         bool
	prevETag         string
	prevLastModified string
	prevLastMsn      uint64
	havePrevLastMsn  bool
}

// pollMediaPlaylist repeatedly reloads one media playlist URL, feeding
// every parsed body to checker and terminating once the playlist
// announces its own end (EXT-X-ENDLIST, or PLAYLIST-TYPE:VOD) or the
// context is cancelled.
func pollMediaPlaylist(
	ctx context.Context,
	client *httpdiag.Client,
	url string,
	checker *Checker,
	manifestLatency, streamLatency *metricchan.Channel,
	sink eventsink.Sink[Event],
	logger *slog.Logger,
	errorBackoff time.Duration,
) {
	if errorBackoff <= 0 {
		errorBackoff = fallbackErrorDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	state := &pollerState{url: url}
	sequentialErrors := 0

	for {
		if ctx.Err() != nil {
			return
		}
		if state.hasDelay {
			select {
			case <-ctx.Done():
				return
			case <-time.After(state.delay):
			}
		}

		start := time.Now()
		ref, resp, pl, err := loadMediaManifest(ctx, client, state, sink)
		if err != nil {
			if errors.Is(err, errNotModified) {
				sequentialErrors = 0
				checker.NotModified(ref)
				continue
			}

			var merr *ManifestError
			errors.As(err, &merr)
			sink.Error(merr.toEvent())
			sequentialErrors++
			if sequentialErrors >= maxSequentialPlaylistLoadErrorCount {
				logger.Error("giving up on media playlist after repeated failures",
					slog.String("url", url), slog.Int("sequential_errors", sequentialErrors))
				return
			}

			switch merr.Kind {
			case HttpStatusKind:
				checker.ErrorStatus(merr.ReqID)
			case HttpTimeoutKind:
				checker.Timeout(merr.ReqID)
			default:
				// Decode/body/URL-class failures aren't expected to self-heal
				// on the next poll; stop rather than hammer a broken origin.
				return
			}
			if !state.hasDelay {
				state.delay = errorBackoff
				state.hasDelay = true
			}
			continue
		}

		sequentialErrors = 0
		if manifestLatency != nil {
			manifestLatency.Put(time.Since(start).Milliseconds())
		}

		checker.NextPlaylist(ref, resp, pl)
		state.prevETag = resp.Header("ETag")
		state.prevLastModified = resp.Header("Last-Modified")

		if end := findEndTime(pl); end != nil && streamLatency != nil {
			streamLatency.Put(int64(time.Since(*end) / time.Millisecond))
		}

		if pl.HasEndList || pl.PlaylistType == hlsplaylist.PlaylistTypeVOD {
			return
		}

		state.delay = nextPollDelay(state, pl)
		state.hasDelay = true
	}
}

// nextPollDelay implements the adaptive per-URL polling cadence: half the
// target duration while the last segment's MSN hasn't moved on from the
// previous poll, otherwise the duration of the newly-arrived last segment,
// so a healthy advancing origin isn't polled more often than it publishes.
func nextPollDelay(state *pollerState, pl *hlsplaylist.MediaPlaylist) time.Duration {
	half := pl.TargetDuration / 2
	if half <= 0 {
		half = time.Second
	}

	last := pl.LastSegment()
	if last == nil {
		state.havePrevLastMsn = false
		return half
	}

	unchanged := state.havePrevLastMsn && state.prevLastMsn == last.MSN
	state.prevLastMsn = last.MSN
	state.havePrevLastMsn = true

	if unchanged {
		return half
	}
	if last.Duration > 0 {
		return last.Duration
	}
	return half
}

// loadMediaManifest issues one conditional GET and, on a fresh body,
// parses it. A 304 is reported as errNotModified rather than a failure.
func loadMediaManifest(ctx context.Context, client *httpdiag.Client, state *pollerState, sink eventsink.Sink[Event]) (httpdiag.HttpRef, *httpdiag.Response, *hlsplaylist.MediaPlaylist, error) {
	b := client.Get(state.url).ContentRole("hls_media_manifest")
	if state.prevETag != "" {
		b.Header("If-None-Match", state.prevETag)
	}
	if state.prevLastModified != "" {
		b.Header("If-Modified-Since", state.prevLastModified)
	}

	resp, err := b.Send(ctx)
	if err != nil {
		var hderr *httpdiag.Error
		if errors.As(err, &hderr) {
			return hderr.Ref, nil, nil, fromHttpError(hderr.Ref, err)
		}
		return httpdiag.HttpRef{}, nil, nil, fromHttpError(httpdiag.HttpRef{}, err)
	}

	ref := resp.Href()
	if resp.Status() == http.StatusNotModified {
		return ref, nil, nil, errNotModified
	}
	if resp.ErrorForStatus() != nil {
		return ref, nil, nil, fromStatus(ref, resp.Status())
	}

	text, err := resp.Text()
	if err != nil {
		return ref, nil, nil, &ManifestError{Kind: HttpDecodeKind, ReqID: ref, cause: err}
	}

	pl, err := hlsplaylist.ParseMediaPlaylist(strings.NewReader(text))
	if err != nil {
		return ref, nil, nil, &ManifestError{Kind: ParseKind, ReqID: ref, cause: err}
	}

	for _, d := range pl.Diagnostics {
		if d.Kind == hlsplaylist.UrlWithoutExtinf {
			sink.Warning(MediaPlaylistWithoutExtinf{
				ReqID: ref, URL: d.URL, Start: d.Span.Start, End: d.Span.End,
			})
		}
	}

	return ref, resp, pl, nil
}

// findEndTime computes the wall-clock time the last segment in pl ends at,
// by locating the first segment carrying EXT-X-PROGRAM-DATE-TIME and
// accumulating segment durations forward from it. Returns nil when no
// segment in the playlist carries a program date time.
func findEndTime(pl *hlsplaylist.MediaPlaylist) *time.Time {
	baseIdx := -1
	for i := range pl.Segments {
		if pl.Segments[i].ProgramDateTime != nil {
			baseIdx = i
			break
		}
	}
	if baseIdx < 0 {
		return nil
	}
	end := *pl.Segments[baseIdx].ProgramDateTime
	for i := baseIdx; i < len(pl.Segments); i++ {
		end = end.Add(pl.Segments[i].Duration)
	}
	return &end
}
