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
	"github.com/dholroyd/strck/internal/metricchan"
	"github.com/dholroyd/strck/pkg/hlsplaylist"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

const multivariantFixture = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1200000
low/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000
high/playlist.m3u8
`

const vodMediaFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:6.000,
seg0.ts
#EXT-X-ENDLIST
`

func TestResolveMediaURLs(t *testing.T) {
	mvp, err := hlsplaylist.ParseMultivariant(strings.NewReader(multivariantFixture))
	require.NoError(t, err)

	p := &Processor{mainURL: "https://example.test/streams/main.m3u8"}
	urls, err := p.resolveMediaURLs(mvp)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"https://example.test/streams/audio/en.m3u8",
		"https://example.test/streams/low/playlist.m3u8",
		"https://example.test/streams/high/playlist.m3u8",
	}, urls)
}

func TestResolveMediaURLs_DedupesIdenticalTargets(t *testing.T) {
	mvp := &hlsplaylist.MultivariantPlaylist{
		Variants: []hlsplaylist.VariantStream{
			{URI: "v.m3u8"},
			{URI: "v.m3u8"},
		},
	}
	p := &Processor{mainURL: "https://example.test/main.m3u8"}
	urls, err := p.resolveMediaURLs(mvp)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/v.m3u8"}, urls)
}

// TestProcessor_Start_VodStreamTerminates exercises the full fan-out: a
// multivariant manifest naming two renditions, each of which is a VOD
// playlist that ends on its first fetch, so every poller goroutine and
// Start itself return promptly without relying on any polling delay.
func TestProcessor_Start_VodStreamTerminates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/main.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(multivariantFixtureNoAudio))
	})
	mux.HandleFunc("/low/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(vodMediaFixture))
	})
	mux.HandleFunc("/high/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(vodMediaFixture))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := httpdiag.New(httpdiag.DefaultConfig(), nil)
	sink, events := eventsink.New[Event](64)
	manifestLatency, manifestConsumer := metricchan.New("manifest_latency", 10_000, nil)
	streamLatency, streamConsumer := metricchan.New("stream_latency", 10_000, nil)
	msnRegression, msnConsumer := metricchan.New("msn_regression", 1000, nil)

	var discard discardWriter
	go manifestConsumer.Run(discard)
	go streamConsumer.Run(discard)
	go msnConsumer.Run(discard)

	proc := NewProcessor(client, srv.URL+"/main.m3u8", sink, manifestLatency, streamLatency, msnRegression, nil, 0)
	err := proc.Start(context.Background())
	require.NoError(t, err)

	var sawLoadedMain bool
	for rec := range events {
		if ev, ok := rec.Extra.(LoadedMain); ok {
			sawLoadedMain = true
			assert.Equal(t, 2, ev.VariantCount)
		}
	}
	assert.True(t, sawLoadedMain, "expected a LoadedMain event")
}

const multivariantFixtureNoAudio = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=1200000
low/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000
high/playlist.m3u8
`

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
