package hls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dholroyd/strck/internal/eventsink"
	"github.com/dholroyd/strck/internal/metricchan"
	"github.com/dholroyd/strck/pkg/hlsplaylist"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

// Processor owns one target's worth of conformance checking: it loads the
// multivariant manifest once, then runs an independent poller goroutine
// per resolved media playlist URL until every one of them terminates.
type Processor struct {
	client  *httpdiag.Client
	mainURL string
	logger  *slog.Logger

	sink            eventsink.Sink[Event]
	manifestLatency *metricchan.Channel
	streamLatency   *metricchan.Channel
	msnRegression   *metricchan.Channel
	errorBackoff    time.Duration
}

// NewProcessor constructs a Processor targeting mainURL. The channels are
// owned by the caller (typically the CLI entry point), which is
// responsible for draining their consumer sides and calling Start, which
// closes them all on the way out. errorBackoff is the delay a media
// playlist poller waits before retrying after a failed poll; zero selects
// the package default.
func NewProcessor(
	client *httpdiag.Client,
	mainURL string,
	sink eventsink.Sink[Event],
	manifestLatency, streamLatency, msnRegression *metricchan.Channel,
	logger *slog.Logger,
	errorBackoff time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		client:          client,
		mainURL:         mainURL,
		logger:          logger,
		sink:            sink,
		manifestLatency: manifestLatency,
		streamLatency:   streamLatency,
		msnRegression:   msnRegression,
		errorBackoff:    errorBackoff,
	}
}

// Start runs the processor to completion and then releases every
// resource it owns, in the order: HTTP client, event sink, metric
// channels. Call exactly once.
func (p *Processor) Start(ctx context.Context) error {
	err := p.run(ctx)
	p.client.Close()
	p.sink.Close()
	p.manifestLatency.Close()
	p.streamLatency.Close()
	p.msnRegression.Close()
	return err
}

func (p *Processor) run(ctx context.Context) error {
	mvp, ref, err := p.loadMainManifest(ctx)
	if err != nil {
		var merr *ManifestError
		if errors.As(err, &merr) {
			p.sink.Error(merr.toEvent())
		}
		return err
	}

	urls, err := p.resolveMediaURLs(mvp)
	if err != nil {
		p.sink.Error(PlaylistMalformedUrl{ReqID: ref})
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("multivariant manifest at %s names no renditions to poll", p.mainURL)
	}

	p.sink.Info(LoadedMain{ReqID: ref, VariantCount: len(mvp.Variants)})

	var wg sync.WaitGroup
	for _, u := range urls {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			checker := NewChecker(p.sink.Clone(), p.msnRegression, p.logger)
			pollMediaPlaylist(ctx, p.client, u, checker, p.manifestLatency, p.streamLatency, p.sink.Clone(), p.logger, p.errorBackoff)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Processor) loadMainManifest(ctx context.Context) (*hlsplaylist.MultivariantPlaylist, httpdiag.HttpRef, error) {
	resp, err := p.client.Get(p.mainURL).ContentRole("hls_main_manifest").Send(ctx)
	if err != nil {
		var hderr *httpdiag.Error
		if errors.As(err, &hderr) {
			return nil, hderr.Ref, fromHttpError(hderr.Ref, err)
		}
		return nil, httpdiag.HttpRef{}, fromHttpError(httpdiag.HttpRef{}, err)
	}
	ref := resp.Href()
	if resp.ErrorForStatus() != nil {
		return nil, ref, fromStatus(ref, resp.Status())
	}
	text, err := resp.Text()
	if err != nil {
		return nil, ref, &ManifestError{Kind: HttpDecodeKind, ReqID: ref, cause: err}
	}
	mvp, err := hlsplaylist.ParseMultivariant(strings.NewReader(text))
	if err != nil {
		return nil, ref, &ManifestError{Kind: ParseKind, ReqID: ref, cause: err}
	}
	return mvp, ref, nil
}

// resolveMediaURLs resolves every variant stream and standalone-URI
// rendition against the main manifest's own URL, the way a client
// following RFC 3986 relative reference resolution must.
func (p *Processor) resolveMediaURLs(mvp *hlsplaylist.MultivariantPlaylist) ([]string, error) {
	base, err := url.Parse(p.mainURL)
	if err != nil {
		return nil, fmt.Errorf("parsing main manifest url: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	add := func(ref string) error {
		if ref == "" {
			return nil
		}
		u, err := url.Parse(ref)
		if err != nil {
			return fmt.Errorf("parsing relative url %q: %w", ref, err)
		}
		resolved := base.ResolveReference(u).String()
		if _, ok := seen[resolved]; ok {
			return nil
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
		return nil
	}

	for _, v := range mvp.Variants {
		if err := add(v.URI); err != nil {
			return nil, err
		}
	}
	for _, r := range mvp.Renditions {
		if err := add(r.URI); err != nil {
			return nil, err
		}
	}
	return urls, nil
}
