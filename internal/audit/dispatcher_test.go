package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	require.Nil(t, d)

	d.Emit(context.Background(), Event{EventType: "login_success"})
	assert.Zero(t, d.Dropped())
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcherDeliversBeforeClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "auth_rejected"})
	}
	require.NoError(t, d.Close(context.Background()))

	assert.EqualValues(t, 50, sink.count.Load())
	assert.EqualValues(t, 50, d.Delivered())

	d.Emit(context.Background(), Event{EventType: "late"})
	assert.EqualValues(t, 50, sink.count.Load())
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	require.Eventually(t, func() bool { return d.Dropped() >= 8 }, time.Second, 5*time.Millisecond)

	close(sink.gate)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "c"})
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, d.Dropped(), uint64(1))

	close(sink.gate)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherCloseTimeout(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(sink.gate)
	require.NoError(t, d.Close(context.Background()))
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		EventType: "logout_session",
		UserID:    "42",
		SessionID: "s-1",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "logout_session", decoded["event_type"])
	assert.Equal(t, "42", decoded["user_id"])
	assert.NotContains(t, decoded, "reason")
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "login_success", Success: true, UserID: "7"})
	sink.Emit(context.Background(), Event{EventType: "auth_rejected", Reason: "expired_token"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "audit", first["component"])
	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, "expired_token", second["reason"])
}
