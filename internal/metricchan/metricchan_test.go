package metricchan

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannel_PutAndDump(t *testing.T) {
	ch, consumer := New("manifest_latency", 10_000, slog.Default())

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		consumer.Run(&buf)
		close(done)
	}()

	ch.Put(100)
	ch.Put(200)
	ch.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not finish")
	}

	assert.Contains(t, buf.String(), "manifest_latency")
	assert.Contains(t, buf.String(), "2 samples")
}

func TestChannel_PutAfterCloseIsNoop(t *testing.T) {
	ch, consumer := New("msn_regression", 1000, slog.Default())
	ch.Close()
	ch.Put(5) // must not panic or block

	var buf bytes.Buffer
	consumer.Run(&buf)
	assert.Contains(t, buf.String(), "0 samples")
}

func TestChannel_DropsOnFullQueue(t *testing.T) {
	ch, _ := New("stream_latency", 7_200_000, slog.Default())
	for i := 0; i < channelCapacity+5; i++ {
		ch.Put(int64(i)) // must never block even though nothing drains it
	}
}
