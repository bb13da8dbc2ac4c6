package stream

import (
	"context"
	"encoding/json"

	"healthmon-agent/internal/model"
)

// Sink receives alert events. Delivery is best-effort: implementations may
// retry internally but the agent calls Notify exactly once per event.
type Sink interface {
	Name() string
	Notify(ctx context.Context, ev model.AlertEvent) error
	Close(ctx context.Context) error
}

// StateReporter is implemented by sinks that also render health transitions.
type StateReporter interface {
	ReportState(ctx context.Context, change model.StateChange) error
}

type AlertFrame struct {
	Instance      string           `json:"instance"`
	TimestampUnix int64            `json:"timestamp_unix"`
	Alert         model.AlertEvent `json:"alert"`
}

type StateFrame struct {
	Instance      string            `json:"instance"`
	TimestampUnix int64             `json:"timestamp_unix"`
	Change        model.StateChange `json:"change"`
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func NewAlertFrame(ev model.AlertEvent) AlertFrame {
	return AlertFrame{Instance: ev.Instance, TimestampUnix: ev.Timestamp.Unix(), Alert: ev}
}

func NewStateFrame(c model.StateChange) StateFrame {
	return StateFrame{Instance: c.Instance, TimestampUnix: c.Timestamp.Unix(), Change: c}
}

func AlertEnvelope(ev model.AlertEvent) model.Envelope {
	return model.Envelope{Type: model.EnvelopeAlert, Instance: ev.Instance, TimestampUnix: ev.Timestamp.Unix(), Payload: NewAlertFrame(ev)}
}

func StateEnvelope(c model.StateChange) model.Envelope {
	return model.Envelope{Type: model.EnvelopeHealth, Instance: c.Instance, TimestampUnix: c.Timestamp.Unix(), Payload: NewStateFrame(c)}
}
