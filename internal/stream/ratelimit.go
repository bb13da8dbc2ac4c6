package stream

import (
	"context"

	"golang.org/x/time/rate"

	"healthmon-agent/internal/model"
)

// RateLimitedSink drops events above the configured rate instead of queueing
// them; the core does not retry.
type RateLimitedSink struct {
	next    Sink
	limiter *rate.Limiter
}

func NewRateLimitedSink(next Sink, perSecond float64, burst int) *RateLimitedSink {
	return &RateLimitedSink{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *RateLimitedSink) Name() string {
	return s.next.Name()
}

func (s *RateLimitedSink) Notify(ctx context.Context, ev model.AlertEvent) error {
	if !s.limiter.Allow() {
		return &DeliveryError{Sink: s.next.Name(), EventID: ev.ID, Err: ErrRateLimited}
	}
	return s.next.Notify(ctx, ev)
}

func (s *RateLimitedSink) ReportState(ctx context.Context, change model.StateChange) error {
	if r, ok := s.next.(StateReporter); ok {
		return r.ReportState(ctx, change)
	}
	return nil
}

func (s *RateLimitedSink) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
