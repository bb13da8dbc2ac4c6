package model

import (
	"fmt"
	"time"
)

type HealthState int32

const (
	// HealthUnknown is only used as the baseline before the first tick.
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthWarning
)

func (s HealthState) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthWarning:
		return "warning"
	default:
		return "unknown"
	}
}

func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type AlertKind string

const (
	AlertReactive   AlertKind = "reactive"
	AlertPredictive AlertKind = "predictive"
)

// AlertEvent is a single threshold breach. ID and Instance are filled in by
// the agent at dispatch time.
type AlertEvent struct {
	ID            string    `json:"id"`
	Instance      string    `json:"instance"`
	Timestamp     time.Time `json:"timestamp"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	Threshold     float64   `json:"threshold"`
	Kind          AlertKind `json:"kind"`
	Confidence    float64   `json:"confidence,omitempty"`
	WindowSeconds int64     `json:"window_seconds,omitempty"`
}

func (e AlertEvent) Margin() float64 {
	return e.Value - e.Threshold
}

func (e AlertEvent) Predictive() bool {
	return e.Kind == AlertPredictive
}

func (e AlertEvent) String() string {
	if e.Predictive() {
		return fmt.Sprintf("%s predicted %.2f > %.2f in %ds (confidence %.1f%%)", e.Metric, e.Value, e.Threshold, e.WindowSeconds, e.Confidence)
	}
	return fmt.Sprintf("%s %.2f > %.2f", e.Metric, e.Value, e.Threshold)
}

// StateChange describes a HealthState transition between two ticks.
type StateChange struct {
	Instance  string      `json:"instance"`
	Timestamp time.Time   `json:"timestamp"`
	From      HealthState `json:"from"`
	To        HealthState `json:"to"`
	Alerts    int         `json:"alerts"`
}
