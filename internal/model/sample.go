package model

import (
	"sort"
	"time"
)

// Sample is one timestamped set of metric readings. Producers build a fresh
// Values map per sample and never touch it afterwards.
type Sample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

func NewSample(at time.Time, values map[string]float64) Sample {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return Sample{Timestamp: at, Values: out}
}

func (s Sample) Value(metric string) (float64, bool) {
	v, ok := s.Values[metric]
	return v, ok
}

func (s Sample) Clone() Sample {
	return NewSample(s.Timestamp, s.Values)
}

// Metrics returns the metric names of the sample in lexical order.
func (s Sample) Metrics() []string {
	names := make([]string, 0, len(s.Values))
	for k := range s.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Thresholds maps a metric name to the level above which it alerts.
type Thresholds map[string]float64

func (t Thresholds) Clone() Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t Thresholds) Metrics() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
