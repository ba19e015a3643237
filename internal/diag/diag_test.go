package diag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/ctxlog"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.Report(ctx, nil)
	c.Report(ctx, errors.New("first"))
	c.Report(ctx, errors.New("second"))
	require.Equal(t, 2, c.Len())

	errs := c.Errors()
	assert.EqualError(t, errs[0], "first")
	assert.EqualError(t, errs[1], "second")

	errs[0] = nil
	assert.NotNil(t, c.Errors()[0], "Errors must return a copy")

	c.Reset()
	assert.Zero(t, c.Len())
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(context.Background(), errors.New("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

func TestLogSinkAndTee(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	c := NewCollector()
	sink := Tee(LogSink{Level: slog.LevelWarn}, nil, c)
	sink.Report(ctx, errors.New("boom"))

	assert.Equal(t, 1, c.Len())
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "Soft failure recorded.")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Report(context.Background(), errors.New("ignored")) })
}
