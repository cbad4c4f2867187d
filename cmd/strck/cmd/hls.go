package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dholroyd/strck/internal/eventsink"
	"github.com/dholroyd/strck/internal/hls"
	"github.com/dholroyd/strck/internal/metricchan"
	"github.com/dholroyd/strck/pkg/bytesize"
	"github.com/dholroyd/strck/pkg/duration"
	"github.com/dholroyd/strck/pkg/httpdiag"
)

var (
	extraHeaders       []string
	requestTimeoutFlag string
	responseLimitFlag  string
	pollingBackoffFlag string
	userAgentFlag      string
	maxRequestsFlag    uint64
)

var hlsCmd = &cobra.Command{
	Use:   "hls <url>",
	Short: "Check an HLS stream's multivariant manifest and media playlists for conformance",
	Args:  cobra.ExactArgs(1),
	RunE:  runHls,
}

func init() {
	hlsCmd.Flags().StringArrayVar(&extraHeaders, "extra-header", nil,
		`additional request header in "Name: value" form; may be repeated`)
	hlsCmd.Flags().StringVar(&requestTimeoutFlag, "request-timeout", "",
		"per-request timeout (e.g. 30s); overrides config default")
	hlsCmd.Flags().StringVar(&responseLimitFlag, "response-limit-bytes", "",
		"maximum response body size (e.g. 40MB); overrides config default")
	hlsCmd.Flags().StringVar(&pollingBackoffFlag, "polling-error-backoff", "",
		"delay before retrying a media playlist after a failed poll")
	hlsCmd.Flags().StringVar(&userAgentFlag, "user-agent", "", "User-Agent header sent with every request")
	hlsCmd.Flags().Uint64Var(&maxRequestsFlag, "max-requests", 0, "stop after this many total requests (0 = unlimited)")
}

func runHls(cmd *cobra.Command, args []string) error {
	mainURL := args[0]
	logger := slog.Default()

	httpCfg := httpdiag.DefaultConfig()
	httpCfg.Logger = logger
	if requestTimeoutFlag != "" {
		d, err := duration.Parse(requestTimeoutFlag)
		if err != nil {
			return fmt.Errorf("parsing --request-timeout: %w", err)
		}
		httpCfg.Timeout = d
	} else if v := viper.GetDuration("http.request_timeout"); v > 0 {
		httpCfg.Timeout = v
	}
	if responseLimitFlag != "" {
		sz, err := bytesize.Parse(responseLimitFlag)
		if err != nil {
			return fmt.Errorf("parsing --response-limit-bytes: %w", err)
		}
		httpCfg.ResponseLimitBytes = sz.Bytes()
	} else if v := viper.GetInt64("http.response_limit_bytes"); v > 0 {
		httpCfg.ResponseLimitBytes = v
	}
	if userAgentFlag != "" {
		httpCfg.UserAgent = userAgentFlag
	} else if v := viper.GetString("http.user_agent"); v != "" {
		httpCfg.UserAgent = v
	}
	if maxRequestsFlag > 0 {
		httpCfg.MaxRequests = maxRequestsFlag
	} else {
		httpCfg.MaxRequests = viper.GetUint64("http.max_requests")
	}

	errorBackoff := viper.GetDuration("http.polling_error_backoff")
	if pollingBackoffFlag != "" {
		d, err := duration.Parse(pollingBackoffFlag)
		if err != nil {
			return fmt.Errorf("parsing --polling-error-backoff: %w", err)
		}
		errorBackoff = d
	}

	parsedHeaders, err := parseExtraHeaders(extraHeaders)
	if err != nil {
		return err
	}
	if len(parsedHeaders) > 0 {
		httpCfg.DefaultHeaders = make(http.Header, len(parsedHeaders))
		for _, h := range parsedHeaders {
			httpCfg.DefaultHeaders.Add(h.Name, h.Value)
		}
	}

	client := httpdiag.New(httpCfg, nil)

	sink, events := eventsink.New[hls.Event](viper.GetInt("metrics.event_channel_capacity"))

	manifestLatency, manifestConsumer := metricchan.New("manifest_latency",
		viper.GetInt64("metrics.manifest_latency_max_ms"), logger)
	streamLatency, streamConsumer := metricchan.New("stream_latency",
		viper.GetInt64("metrics.stream_latency_max_ms"), logger)
	msnRegression, msnConsumer := metricchan.New("msn_regression",
		viper.GetInt64("metrics.msn_regression_max"), logger)

	stdout := &syncWriter{w: bufio.NewWriter(os.Stdout)}
	defer stdout.w.Flush()

	var drainers sync.WaitGroup
	drainers.Add(4)
	go func() {
		defer drainers.Done()
		for rec := range events {
			fmt.Fprintf(stdout, "[%s] %s %+v\n", rec.Severity, rec.Extra.EventName(), rec.Extra)
		}
	}()
	go func() { defer drainers.Done(); manifestConsumer.Run(stdout) }()
	go func() { defer drainers.Done(); streamConsumer.Run(stdout) }()
	go func() { defer drainers.Done(); msnConsumer.Run(stdout) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc := hls.NewProcessor(client, mainURL, sink, manifestLatency, streamLatency, msnRegression, logger, errorBackoff)
	runErr := proc.Start(ctx)
	drainers.Wait()

	return runErr
}

// syncWriter serializes writes from the event-sink drain goroutine and the
// three metric consumer goroutines, which otherwise race on the shared
// buffered stdout writer.
type syncWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	s.w.Flush()
	return n, err
}

func parseExtraHeaders(raw []string) ([]httpdiag.ExtraHeader, error) {
	headers := make([]httpdiag.ExtraHeader, 0, len(raw))
	for _, s := range raw {
		h, err := httpdiag.ParseExtraHeader(s)
		if err != nil {
			return nil, fmt.Errorf("parsing --extra-header %q: %w", s, err)
		}
		headers = append(headers, h)
	}
	return headers, nil
}
