package httpdiag

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptrace"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Default configuration values, named after their role in the wire contract
// rather than after any one caller (CLI and tests each pick their own
// response limit).
const (
	DefaultTimeout            = 30 * time.Second
	DefaultResponseLimitBytes = 40 << 20 // 40 MiB, the CLI entry point's cap
)

// Config configures a Client.
type Config struct {
	// ResponseLimitBytes caps the accumulated body size; exceeding it aborts
	// the read and reports ResponseSizeExceedsLimit.
	ResponseLimitBytes int64

	// MaxRequests optionally caps the number of requests this Client will
	// ever attempt. Zero means unlimited.
	MaxRequests uint64

	// Timeout bounds each individual request, connect through body.
	Timeout time.Duration

	// UserAgent is sent as the User-Agent header on every request.
	UserAgent string

	// DefaultHeaders are added to every request issued by the Client,
	// before any headers attached to an individual RequestBuilder.
	DefaultHeaders http.Header

	// Logger receives diagnostic lines about dropped/oversized responses.
	Logger *slog.Logger

	// BaseClient is the underlying http.Client to use. If nil, a default
	// client with Timeout set is constructed.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ResponseLimitBytes: DefaultResponseLimitBytes,
		Timeout:            DefaultTimeout,
		Logger:             slog.Default(),
	}
}

// Client issues diagnostic-wrapped HTTP GETs. Every Send that issues a
// request, success or failure, synchronously produces exactly one HttpRef
// and hands it to the installed Snoop before Send returns. A Send refused by
// the MaxRequests cap, or one whose URL cannot be turned into a request,
// returns an Error with a zero Ref and reaches no Snoop.
type Client struct {
	cfg          Config
	http         *http.Client
	snoop        Snoop
	logger       *slog.Logger
	requestCount atomic.Uint64
}

// New constructs a Client. snoop may be NopSnoop{} if no side-channel
// observation is needed.
func New(cfg Config, snoop Snoop) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ResponseLimitBytes <= 0 {
		cfg.ResponseLimitBytes = DefaultResponseLimitBytes
	}
	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	if snoop == nil {
		snoop = NopSnoop{}
	}
	return &Client{
		cfg:    cfg,
		http:   base,
		snoop:  snoop,
		logger: cfg.Logger,
	}
}

// TotalRequestCount returns the number of requests attempted so far.
func (c *Client) TotalRequestCount() uint64 {
	return c.requestCount.Load()
}

// Close reports the final request count and releases the Snoop.
func (c *Client) Close() {
	c.logger.Info("http diagnostic client closing", slog.Uint64("requests_attempted", c.requestCount.Load()))
	c.snoop.Close()
}

// Get begins building a GET request for url.
func (c *Client) Get(url string) *RequestBuilder {
	return &RequestBuilder{
		id:      uuid.New(),
		client:  c,
		url:     url,
		headers: make(http.Header),
	}
}

// RequestBuilder accumulates the headers and content role for one GET before
// it is sent.
type RequestBuilder struct {
	id          uuid.UUID
	client      *Client
	url         string
	headers     http.Header
	contentRole string
}

// Header attaches an additional request header.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.headers.Add(name, value)
	return b
}

// ContentRole labels the client's expectation of the content being
// requested. It is never sent on the wire; it exists purely so logs and
// HttpInfo records can explain why a request was issued.
func (b *RequestBuilder) ContentRole(role string) *RequestBuilder {
	b.contentRole = role
	return b
}

// ReqID returns the id that will become this request's X-Request-Id header
// and HttpInfo.ID.
func (b *RequestBuilder) ReqID() uuid.UUID {
	return b.id
}

// Send issues the request. Once a request has been issued, its HttpRef is
// available via the returned Response, or via the Error, after Send returns;
// the Error of a request that was never issued carries a zero Ref.
func (b *RequestBuilder) Send(ctx context.Context) (*Response, error) {
	if max := b.client.cfg.MaxRequests; max > 0 {
		// Incremented before the cap check so concurrent callers can never
		// exceed the cap; rolled back immediately since this request is
		// never attempted.
		n := b.client.requestCount.Add(1)
		if n > max {
			b.client.requestCount.Add(^uint64(0))
			return nil, &Error{Kind: NumberOfRequestsExceedsLimit, Max: max}
		}
	} else {
		b.client.requestCount.Add(1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, &Error{Kind: RequestUnknownFault, cause: err}
	}
	for name, values := range b.client.cfg.DefaultHeaders {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, values := range b.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && b.client.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", b.client.cfg.UserAgent)
	}
	// Accept-Encoding is left unset so that net/http's transport requests
	// gzip itself and transparently decompresses a gzip-encoded response.
	// Tag the request with our per-request id for server-side log
	// correlation.
	req.Header.Set("X-Request-Id", base64.RawURLEncoding.EncodeToString(b.id[:]))

	var remoteAddr netip.AddrPort
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Conn == nil {
				return
			}
			if addr, err := netip.ParseAddrPort(info.Conn.RemoteAddr().String()); err == nil {
				remoteAddr = addr
			}
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, sendErr := b.client.http.Do(req)
	if sendErr != nil {
		info := newHttpInfo(&HttpInfo{
			ID:           b.id,
			URL:          b.url,
			Time:         start,
			TimeTotal:    time.Since(start),
			ContentRole:  b.contentRole,
			TransportErr: sendErr,
		})
		ref := HttpRef{inner: info}
		b.client.snoop.Snoop(ref)
		return nil, &Error{Kind: classifyTransportError(sendErr), Ref: ref, cause: sendErr}
	}
	defer resp.Body.Close()

	pretransfer := time.Since(start)

	limit := b.client.cfg.ResponseLimitBytes
	var buf bytes.Buffer
	if resp.ContentLength > 0 && resp.ContentLength <= limit {
		buf.Grow(int(resp.ContentLength))
	}
	overflowed := false
	n, readErr := io.CopyN(&buf, resp.Body, limit+1)
	if n > limit {
		overflowed = true
	}
	if readErr != nil && readErr != io.EOF {
		// A genuine I/O failure while streaming the body.
		info := newHttpInfo(&HttpInfo{
			ID:          b.id,
			URL:         b.url,
			Time:        start,
			TimeTotal:   time.Since(start),
			TimePretransfer: &pretransfer,
			ContentRole: b.contentRole,
			Response: &HttpResponseInfo{
				Status:     resp.StatusCode,
				Headers:    resp.Header,
				Proto:      resp.Proto,
				RemoteAddr: remoteAddr,
				BodyErr:    &Error{Kind: RequestBody, cause: readErr},
			},
		})
		ref := HttpRef{inner: info}
		b.client.snoop.Snoop(ref)
		return nil, &Error{Kind: RequestBody, Ref: ref, cause: readErr}
	}

	respInfo := &HttpResponseInfo{
		Status:     resp.StatusCode,
		Headers:    resp.Header,
		Proto:      resp.Proto,
		RemoteAddr: remoteAddr,
	}
	if overflowed {
		respInfo.BodyErr = &Error{Kind: ResponseSizeExceedsLimit, Limit: limit}
	} else {
		data := make([]byte, buf.Len())
		copy(data, buf.Bytes())
		respInfo.Body = &BodyInfo{Data: data, Hash: fingerprint(data)}
	}

	info := newHttpInfo(&HttpInfo{
		ID:              b.id,
		URL:             b.url,
		Time:            start,
		TimeTotal:       time.Since(start),
		TimePretransfer: &pretransfer,
		ContentRole:     b.contentRole,
		Response:        respInfo,
	})
	ref := HttpRef{inner: info}
	b.client.snoop.Snoop(ref)

	if overflowed {
		b.client.logger.Warn("response exceeded size limit, aborting read",
			slog.String("url", b.url), slog.Int64("limit", limit))
		return nil, &Error{Kind: ResponseSizeExceedsLimit, Ref: ref, Limit: limit}
	}
	return &Response{ref: ref}, nil
}

// Response is the success half of a Send: a terminal HttpInfo whose Response
// field is populated (body may still have failed to read fully, see
// HttpResponseInfo.BodyErr, though that case is surfaced as an Error by
// Send itself rather than reaching here).
type Response struct {
	ref HttpRef
}

// Href returns the HttpRef for the transaction that produced this response.
func (r *Response) Href() HttpRef {
	return r.ref
}

// Status returns the HTTP status code.
func (r *Response) Status() int {
	return r.ref.Info().Response.Status
}

// Header returns the first value for the named response header.
func (r *Response) Header(key string) string {
	return r.ref.Info().Response.Headers.Get(key)
}

// Headers returns the full response header set.
func (r *Response) Headers() http.Header {
	return r.ref.Info().Response.Headers
}

// TotalTime returns the end-to-end duration of the request.
func (r *Response) TotalTime() time.Duration {
	return r.ref.Info().TimeTotal
}

// Bytes returns the accumulated response body.
func (r *Response) Bytes() []byte {
	body := r.ref.Info().Response.Body
	if body == nil {
		return nil
	}
	return body.Data
}

// Hash returns the response body's fingerprint.
func (r *Response) Hash() uint64 {
	body := r.ref.Info().Response.Body
	if body == nil {
		return 0
	}
	return body.Hash
}

// Text decodes the body using the charset parameter of Content-Type,
// falling back to UTF-8 when absent or unrecognized.
func (r *Response) Text() (string, error) {
	raw := r.Bytes()
	enc := textEncoding(r.Header("Content-Type"))
	if enc == nil {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &Error{Kind: RequestDecode, Ref: r.ref, cause: err}
	}
	return string(decoded), nil
}

// textEncoding resolves the charset parameter of a Content-Type header to a
// text encoding, returning nil for UTF-8 or when no charset is present.
func textEncoding(contentType string) encoding.Encoding {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	charset, ok := params["charset"]
	if !ok {
		return nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	name, _ := htmlindex.Name(enc)
	if name == "UTF-8" {
		return nil
	}
	return enc
}

// ErrorForStatus classifies a 4xx/5xx response as Error{Kind: Status}.
func (r *Response) ErrorForStatus() error {
	status := r.Status()
	if status >= 400 {
		return &Error{Kind: Status, Ref: r.ref}
	}
	return nil
}
