package analytics

import (
	"context"
	"log"
	"time"

	"chatmemo/internal/metrics"
	"chatmemo/internal/models"
	"chatmemo/internal/worker"
)

const recordTimeout = 5 * time.Second

// AsyncSink hands events to a worker pool so recording never blocks a turn.
// Events are dropped when the intake queue is full.
type AsyncSink struct {
	inner      Sink
	dispatcher *worker.Dispatcher
}

func NewAsyncSink(inner Sink, cfg worker.Config) *AsyncSink {
	return &AsyncSink{inner: inner, dispatcher: worker.NewDispatcher(cfg)}
}

func (s *AsyncSink) Record(_ context.Context, event models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	err := s.dispatcher.TrySubmit(event.SessionID, func() {
		// detached from the request so a finished turn does not cancel the write
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.inner.Record(ctx, event); err != nil {
			metrics.AnalyticsDropped.Inc()
			log.Printf("analytics record %s failed: %v", event.Type, err)
		}
	})
	if err != nil {
		metrics.AnalyticsDropped.Inc()
		return err
	}
	return nil
}

// Close flushes queued events.
func (s *AsyncSink) Close(ctx context.Context) error {
	return s.dispatcher.Close(ctx)
}
