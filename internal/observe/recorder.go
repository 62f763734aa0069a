package observe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/models"
)

// EventStore persists telemetry. The sqlite store implements it.
type EventStore interface {
	InsertEvent(ctx context.Context, ev models.StageEvent) error
	SaveSummary(ctx context.Context, sum models.SessionSummary) error
}

type recordKind int

const (
	recordStage recordKind = iota + 1
	recordSummary
)

type recordEvent struct {
	kind    recordKind
	stage   models.StageEvent
	summary models.SessionSummary
}

// Recorder persists telemetry from a single background goroutine so the
// pipeline never waits on the database.
type Recorder struct {
	store   EventStore
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	events chan recordEvent
	wg     sync.WaitGroup
}

func NewRecorder(store EventStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
		events:  make(chan recordEvent, 256),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		var err error
		switch ev.kind {
		case recordStage:
			err = r.store.InsertEvent(ctx, ev.stage)
		case recordSummary:
			err = r.store.SaveSummary(ctx, ev.summary)
		}
		cancel()
		if err != nil {
			r.logger.Warn("record telemetry", zap.Error(err))
		}
	}
}

// enqueue drops the event once the recorder is closed. A full buffer
// applies backpressure instead of losing events.
func (r *Recorder) enqueue(ev recordEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.events <- ev
}

func (r *Recorder) StageEvent(ev models.StageEvent) {
	r.enqueue(recordEvent{kind: recordStage, stage: ev})
}

func (r *Recorder) SessionSummary(sum models.SessionSummary) {
	r.enqueue(recordEvent{kind: recordSummary, summary: sum})
}

// Close flushes pending events and stops the background goroutine.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	r.wg.Wait()
}
