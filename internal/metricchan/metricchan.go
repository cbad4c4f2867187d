// Package metricchan implements the bounded, single-producer/single-consumer
// histogram pipe that carries latency and regression samples out of the
// polling loops without ever blocking them.
package metricchan

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// channelCapacity is the number of buffered samples before Put starts
// dropping. The source channel buffers 40; kept identical here since
// nothing in this domain calls for a different cadence.
const channelCapacity = 40

type sample struct {
	value     int64
	closedown bool
}

// Channel is the producer half: Put is called from the polling loops. It
// never blocks — a full channel means the sample is dropped, because losing
// observability samples is preferred over distorting the polling cadence.
type Channel struct {
	name   string
	ch     chan sample
	logger *slog.Logger
	closed bool
}

// Consumer is the single reader half, owned by whichever goroutine drains
// samples into the histogram and prints the final report.
type Consumer struct {
	name   string
	hist   *hdrhistogram.Histogram
	ch     chan sample
	logger *slog.Logger
}

// New creates a Channel/Consumer pair for one named metric, with samples
// tracked up to maxValue in the histogram's natural unit.
func New(name string, maxValue int64, logger *slog.Logger) (*Channel, *Consumer) {
	if logger == nil {
		logger = slog.Default()
	}
	ch := make(chan sample, channelCapacity)
	hist := hdrhistogram.New(0, maxValue, 3)
	return &Channel{name: name, ch: ch, logger: logger},
		&Consumer{name: name, hist: hist, ch: ch, logger: logger}
}

// Put records one sample. Non-blocking: if the channel is full the sample is
// dropped and a diagnostic line is logged.
func (c *Channel) Put(value int64) {
	if c.closed {
		return
	}
	select {
	case c.ch <- sample{value: value}:
	default:
		c.logger.Warn("metric channel full, dropping sample",
			slog.String("metric", c.name), slog.Int64("value", value))
	}
}

// Close signals the consumer to flush and stop. Like Put, it is
// non-blocking: if the channel happens to be full the underlying channel is
// closed instead of queueing the signal, so the consumer still stops once
// it has drained the buffered samples. Subsequent Put calls are silently
// ignored.
func (c *Channel) Close() {
	if c.closed {
		return
	}
	c.closed = true
	select {
	case c.ch <- sample{closedown: true}:
	default:
		c.logger.Warn("metric channel full, could not signal shutdown", slog.String("metric", c.name))
		close(c.ch)
	}
}

// Run drains samples until Close's signal arrives, recording each into the
// histogram, then writes a fixed-width ASCII report to w and returns.
func (c *Consumer) Run(w io.Writer) {
	for s := range c.ch {
		if s.closedown {
			c.dump(w)
			return
		}
		if err := c.hist.RecordValue(s.value); err != nil {
			c.logger.Warn("couldn't add metric value to histogram",
				slog.String("metric", c.name), slog.Int64("value", s.value), slog.String("error", err.Error()))
		}
	}
	c.dump(w)
}

func (c *Consumer) dump(w io.Writer) {
	count := c.hist.TotalCount()
	fmt.Fprintf(w, "Metric %s, %d samples, max %d\n", c.name, count, c.hist.Max())
	if count == 0 {
		return
	}
	const barWidth = 50
	quantiles := []float64{50, 75, 90, 95, 99, 99.9, 100}
	maxVal := c.hist.ValueAtQuantile(100)
	for _, q := range quantiles {
		v := c.hist.ValueAtQuantile(q)
		barSize := 0
		if maxVal > 0 {
			barSize = int(v * barWidth / maxVal)
		}
		fmt.Fprintf(w, "%6.2f%% %7d %s\n", q, v, strings.Repeat("#", barSize))
	}
}
