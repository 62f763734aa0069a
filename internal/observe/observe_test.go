package observe

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dyike/cortexanalyst/models"
)

var start = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func event(stage string, ok bool) models.StageEvent {
	ev := models.StageEvent{Session: "s1", Stage: stage, Start: start, End: start.Add(time.Second), Success: ok, Kind: models.OutcomeSuccess}
	if !ok {
		ev.Kind = models.OutcomeFatal
		ev.Error = "boom"
	}
	return ev
}

type memStore struct {
	mu        sync.Mutex
	events    []models.StageEvent
	summaries []models.SessionSummary
	fail      bool
}

func (m *memStore) InsertEvent(_ context.Context, ev models.StageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db locked")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) SaveSummary(_ context.Context, sum models.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, sum)
	return nil
}

type countSink struct {
	mu              sync.Mutex
	stages, summary int
}

func (c *countSink) StageEvent(models.StageEvent) {
	c.mu.Lock()
	c.stages++
	c.mu.Unlock()
}

func (c *countSink) SessionSummary(models.SessionSummary) {
	c.mu.Lock()
	c.summary++
	c.mu.Unlock()
}

func TestRecorderFlushesOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &memStore{}
	r := NewRecorder(store, nil)
	for i := 0; i < 500; i++ {
		r.StageEvent(event("fetch", true))
	}
	r.SessionSummary(models.SessionSummary{Session: "s1"})
	r.Close()
	r.Close()

	assert.Len(t, store.events, 500)
	assert.Len(t, store.summaries, 1)

	r.StageEvent(event("late", true))
	assert.Len(t, store.events, 500, "events after close are dropped")
}

func TestRecorderLogsStoreErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	core, logs := observer.New(zap.WarnLevel)
	r := NewRecorder(&memStore{fail: true}, zap.New(core))
	r.StageEvent(event("fetch", true))
	r.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "record telemetry", logs.All()[0].Message)
}

func TestMultiAndNop(t *testing.T) {
	a, b := &countSink{}, &countSink{}
	s := Multi(a, nil, b, Nop())
	s.StageEvent(event("fetch", true))
	s.SessionSummary(models.SessionSummary{})
	assert.Equal(t, 1, a.stages)
	assert.Equal(t, 1, b.summary)
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(zap.New(core))

	s.StageEvent(event("fetch", true))
	degraded := event("narrate", true)
	degraded.Kind = models.OutcomeDegraded
	s.StageEvent(degraded)
	s.StageEvent(event("score", false))
	s.SessionSummary(models.SessionSummary{Session: "s1", Status: "completed"})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
	assert.Equal(t, "session finished", entries[3].Message)
	assert.Equal(t, "completed", entries[3].ContextMap()["status"])
}

func TestTraceSinkSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	s := NewTraceSink(provider)

	s.StageEvent(event("fetch", true))
	s.StageEvent(event("score", false))
	s.SessionSummary(models.SessionSummary{Session: "s1", StartedAt: start, Duration: 3 * time.Second})
	spans := exporter.GetSpans()
	require.NoError(t, s.Shutdown(context.Background()))
	require.Len(t, spans, 3)
	assert.Equal(t, "fetch", spans[0].Name)
	assert.Equal(t, start, spans[0].StartTime)
	assert.Equal(t, start.Add(time.Second), spans[0].EndTime)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "session", spans[2].Name)
	assert.Equal(t, start.Add(3*time.Second), spans[2].EndTime)
}

func TestStdoutTraceSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStdoutTraceSink(&buf, "test")
	require.NoError(t, err)
	s.StageEvent(event("fetch", true))
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "fetch"`)
}
