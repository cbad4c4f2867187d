package hlsplaylist

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canonicalPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:100
#EXTINF:9.009,
segment100.ts
#EXT-X-DISCONTINUITY
#EXTINF:10.000,
segment101.ts
`

func TestParseMediaPlaylist_Canonical(t *testing.T) {
	p, err := ParseMediaPlaylist(strings.NewReader(canonicalPlaylist))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, p.TargetDuration)
	assert.EqualValues(t, 100, p.MediaSequence)
	require.Len(t, p.Segments, 2)
	assert.EqualValues(t, 100, p.Segments[0].MSN)
	assert.Equal(t, "segment100.ts", p.Segments[0].URI)
	assert.False(t, p.Segments[0].HasDiscontinuity)
	assert.EqualValues(t, 101, p.Segments[1].MSN)
	assert.True(t, p.Segments[1].HasDiscontinuity)
	assert.Equal(t, 9009*time.Millisecond, p.Segments[0].Duration)
	assert.Empty(t, p.Diagnostics)
}

func TestParseMediaPlaylist_MissingTargetDuration(t *testing.T) {
	src := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:1,\na.ts\n"
	_, err := ParseMediaPlaylist(strings.NewReader(src))
	require.Error(t, err)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, MissingTargetDuration, fatal.Kind)
}

func TestParseMediaPlaylist_UrlWithoutExtinf(t *testing.T) {
	src := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\nstray.ts\n"
	p, err := ParseMediaPlaylist(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, p.Diagnostics, 1)
	assert.Equal(t, UrlWithoutExtinf, p.Diagnostics[0].Kind)
	assert.Equal(t, "stray.ts", p.Diagnostics[0].URL)
	require.Len(t, p.Segments, 1)
}

func TestParseMediaPlaylist_EndList(t *testing.T) {
	src := canonicalPlaylist + "#EXT-X-ENDLIST\n"
	p, err := ParseMediaPlaylist(strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, p.HasEndList)
}

func TestParseMediaPlaylist_Daterange(t *testing.T) {
	src := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-DATERANGE:ID="x",START-DATE="2024-01-01T00:00:00Z",PLANNED-DURATION=10.0
#EXTINF:10.0,
a.ts
`
	p, err := ParseMediaPlaylist(strings.NewReader(src))
	require.NoError(t, err)
	require.NotNil(t, p.Segments[0].DateRange)
	assert.Equal(t, "x", p.Segments[0].DateRange.ID)
	v, ok := p.Segments[0].DateRange.Attr("PLANNED-DURATION")
	require.True(t, ok)
	assert.Equal(t, "10.0", v)
}

func TestParseMultivariant(t *testing.T) {
	src := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",URI="audio.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000
video.m3u8
`
	p, err := ParseMultivariant(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "video.m3u8", p.Variants[0].URI)
	assert.EqualValues(t, 1280000, p.Variants[0].Bandwidth)
	require.Len(t, p.Renditions, 1)
	assert.Equal(t, "audio.m3u8", p.Renditions[0].URI)
}
