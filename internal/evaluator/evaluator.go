// Package evaluator classifies samples against thresholds. Everything here
// is pure and safe for concurrent use.
package evaluator

import (
	"math"
	"sort"
	"time"

	"healthmon-agent/internal/model"
)

// Evaluate returns Warning and one reactive AlertEvent per metric whose
// value is strictly above its threshold. Metrics missing from either side
// are skipped. Events are ordered by descending margin, then metric name.
func Evaluate(sample model.Sample, thresholds model.Thresholds) (model.HealthState, []model.AlertEvent) {
	alerts := breaches(sample, thresholds, model.AlertReactive)
	return stateOf(alerts), alerts
}

// EvaluateForecast applies the same rule to a forecast sample. Events are
// tagged predictive and carry the forecast confidence and window.
func EvaluateForecast(forecast model.Forecast, thresholds model.Thresholds, window time.Duration) []model.AlertEvent {
	alerts := breaches(forecast.Sample, thresholds, model.AlertPredictive)
	seconds := int64(window / time.Second)
	for i := range alerts {
		alerts[i].Confidence = forecast.Confidence
		alerts[i].WindowSeconds = seconds
	}
	return alerts
}

func breaches(sample model.Sample, thresholds model.Thresholds, kind model.AlertKind) []model.AlertEvent {
	var alerts []model.AlertEvent
	for metric, limit := range thresholds {
		value, ok := sample.Values[metric]
		if !ok || math.IsNaN(value) || !(value > limit) {
			continue
		}
		alerts = append(alerts, model.AlertEvent{
			Timestamp: sample.Timestamp,
			Metric:    metric,
			Value:     value,
			Threshold: limit,
			Kind:      kind,
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		mi, mj := alerts[i].Margin(), alerts[j].Margin()
		if mi != mj {
			return mi > mj
		}
		return alerts[i].Metric < alerts[j].Metric
	})
	return alerts
}

func stateOf(alerts []model.AlertEvent) model.HealthState {
	if len(alerts) > 0 {
		return model.HealthWarning
	}
	return model.HealthHealthy
}
