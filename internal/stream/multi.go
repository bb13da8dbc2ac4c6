package stream

import (
	"context"
	"errors"
	"strings"

	"healthmon-agent/internal/model"
)

// MultiSink delivers every event to each member in order. A failing member
// does not prevent delivery to the others.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

func (m *MultiSink) Notify(ctx context.Context, ev model.AlertEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, AsDeliveryError(s.Name(), ev.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) ReportState(ctx context.Context, change model.StateChange) error {
	var errs []error
	for _, s := range m.sinks {
		r, ok := s.(StateReporter)
		if !ok {
			continue
		}
		if err := r.ReportState(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
