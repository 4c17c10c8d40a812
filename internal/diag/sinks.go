package diag

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/telemetry"
)

// LogSink writes diagnostic events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps a zap logger as a Sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record logs each event at warn level.
func (s *LogSink) Record(_ context.Context, events []Event) error {
	for _, evt := range events {
		s.logger.Warn("diagnostic event",
			zap.String("kind", string(evt.Kind)),
			zap.String("service", evt.Service),
			zap.String("detail", evt.Detail),
			zap.String("error", evt.Err),
			zap.Time("at", evt.At),
		)
	}
	return nil
}

// MetricsSink counts diagnostic events in Prometheus.
type MetricsSink struct{}

// Record increments the per-kind counter for each event.
func (MetricsSink) Record(_ context.Context, events []Event) error {
	for _, evt := range events {
		telemetry.CountDiagnostic(string(evt.Kind))
	}
	return nil
}

// MemorySink retains events for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Record appends the batch.
func (s *MemorySink) Record(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
