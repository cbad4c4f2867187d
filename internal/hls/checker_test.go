package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dholroyd/strck/internal/eventsink"
	"github.com/dholroyd/strck/pkg/hlsplaylist"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

const basePlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:10
#EXTINF:6.000,
seg10.ts
#EXTINF:6.000,
seg11.ts
`

const regressedPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:9
#EXTINF:6.000,
seg9.ts
#EXTINF:6.000,
seg10.ts
`

func fetchAndCheck(t *testing.T, client *httpdiag.Client, url string, checker *Checker) *hlsplaylist.MediaPlaylist {
	t.Helper()
	resp, err := client.Get(url).ContentRole("hls_media_manifest").Send(context.Background())
	require.NoError(t, err)
	text, err := resp.Text()
	require.NoError(t, err)
	pl, err := hlsplaylist.ParseMediaPlaylist(strings.NewReader(text))
	require.NoError(t, err)
	checker.NextPlaylist(resp.Href(), resp, pl)
	return pl
}

func TestChecker_MsnGoneBackwards(t *testing.T) {
	bodies := []string{basePlaylist, regressedPlaylist}
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[i]))
		if i < len(bodies)-1 {
			i++
		}
	}))
	defer srv.Close()

	sink, events := eventsink.New[Event](16)
	checker := NewChecker(sink, nil, nil)
	client := httpdiag.New(httpdiag.DefaultConfig(), nil)
	defer client.Close()

	fetchAndCheck(t, client, srv.URL, checker)
	fetchAndCheck(t, client, srv.URL, checker)
	sink.Close()

	var sawRegression bool
	for rec := range events {
		if _, ok := rec.Extra.(MsnGoneBackwards); ok {
			sawRegression = true
		}
	}
	assert.True(t, sawRegression, "expected a MsnGoneBackwards event")
}

const daterangeV1 = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-DATERANGE:ID="ad1",START-DATE="2024-01-01T00:00:00Z",DURATION=30.0
#EXTINF:6.000,
seg1.ts
`

const daterangeV2Changed = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-DATERANGE:ID="ad1",START-DATE="2024-01-01T00:00:00Z",DURATION=45.0
#EXTINF:6.000,
seg1.ts
#EXTINF:6.000,
seg2.ts
`

func TestChecker_DaterangeAttributeChanged(t *testing.T) {
	bodies := []string{daterangeV1, daterangeV2Changed}
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[i]))
		if i < len(bodies)-1 {
			i++
		}
	}))
	defer srv.Close()

	sink, events := eventsink.New[Event](16)
	checker := NewChecker(sink, nil, nil)
	client := httpdiag.New(httpdiag.DefaultConfig(), nil)
	defer client.Close()

	fetchAndCheck(t, client, srv.URL, checker)
	fetchAndCheck(t, client, srv.URL, checker)
	sink.Close()

	var found DaterangeAttributeChanged
	var ok bool
	for rec := range events {
		if ev, match := rec.Extra.(DaterangeAttributeChanged); match {
			found, ok = ev, true
		}
	}
	require.True(t, ok, "expected a DaterangeAttributeChanged event")
	assert.Equal(t, "ad1", found.DaterangeID)
	assert.Equal(t, "DURATION", found.AttrName)
	assert.Equal(t, "30.0", found.PrevValue)
	assert.Equal(t, "45.0", found.ThisValue)
}

func TestChecker_EndListTagRemovedIsAnError(t *testing.T) {
	withEnd := basePlaylist + "#EXT-X-ENDLIST\n"
	withoutEnd := basePlaylist

	bodies := []string{withEnd, withoutEnd}
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[i]))
		if i < len(bodies)-1 {
			i++
		}
	}))
	defer srv.Close()

	sink, events := eventsink.New[Event](16)
	checker := NewChecker(sink, nil, nil)
	client := httpdiag.New(httpdiag.DefaultConfig(), nil)
	defer client.Close()

	fetchAndCheck(t, client, srv.URL, checker)
	fetchAndCheck(t, client, srv.URL, checker)
	sink.Close()

	var sawRemoval bool
	for rec := range events {
		if _, ok := rec.Extra.(EndListTagRemoved); ok {
			sawRemoval = true
			assert.Equal(t, eventsink.Error, rec.Severity)
		}
	}
	assert.True(t, sawRemoval)
}
