package stream

import (
	"context"
	"log/slog"

	"healthmon-agent/internal/model"
)

// LogSink writes alerts to the structured log. It never fails.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Notify(ctx context.Context, ev model.AlertEvent) error {
	attrs := []any{
		"id", ev.ID,
		"instance", ev.Instance,
		"kind", ev.Kind,
		"metric", ev.Metric,
		"value", ev.Value,
		"threshold", ev.Threshold,
		"margin", ev.Margin(),
	}
	if ev.Predictive() {
		attrs = append(attrs, "confidence", ev.Confidence, "window_seconds", ev.WindowSeconds)
	}
	s.logger.WarnContext(ctx, "threshold alert", attrs...)
	return nil
}

func (s *LogSink) Close(context.Context) error {
	return nil
}
