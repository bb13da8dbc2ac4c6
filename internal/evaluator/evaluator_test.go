package evaluator

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon-agent/internal/model"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func metrics(events []model.AlertEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Metric)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		values     map[string]float64
		thresholds model.Thresholds
		wantState  model.HealthState
		wantOrder  []string
	}{
		{
			name:       "all below thresholds",
			values:     map[string]float64{"cpu": 50, "memory": 60},
			thresholds: model.Thresholds{"cpu": 80, "memory": 80},
			wantState:  model.HealthHealthy,
		},
		{
			name:       "equal to threshold is not a breach",
			values:     map[string]float64{"cpu": 80},
			thresholds: model.Thresholds{"cpu": 80},
			wantState:  model.HealthHealthy,
		},
		{
			name:       "single breach",
			values:     map[string]float64{"cpu": 95, "memory": 40},
			thresholds: model.Thresholds{"cpu": 80, "memory": 80},
			wantState:  model.HealthWarning,
			wantOrder:  []string{"cpu"},
		},
		{
			name:       "ordered by margin",
			values:     map[string]float64{"cpu": 85, "memory": 99, "disk": 90},
			thresholds: model.Thresholds{"cpu": 80, "memory": 80, "disk": 80},
			wantState:  model.HealthWarning,
			wantOrder:  []string{"memory", "disk", "cpu"},
		},
		{
			name:       "equal margins fall back to name",
			values:     map[string]float64{"memory": 90, "cpu": 90, "disk": 90},
			thresholds: model.Thresholds{"cpu": 80, "memory": 80, "disk": 80},
			wantState:  model.HealthWarning,
			wantOrder:  []string{"cpu", "disk", "memory"},
		},
		{
			name:       "metric missing from sample is skipped",
			values:     map[string]float64{"cpu": 99},
			thresholds: model.Thresholds{"cpu": 80, "memory": 10},
			wantState:  model.HealthWarning,
			wantOrder:  []string{"cpu"},
		},
		{
			name:       "metric without threshold is ignored",
			values:     map[string]float64{"cpu": 10, "traffic": 1e9},
			thresholds: model.Thresholds{"cpu": 80},
			wantState:  model.HealthHealthy,
		},
		{
			name:       "NaN never breaches",
			values:     map[string]float64{"cpu": math.NaN()},
			thresholds: model.Thresholds{"cpu": 80},
			wantState:  model.HealthHealthy,
		},
		{
			name:      "no thresholds",
			values:    map[string]float64{"cpu": 100},
			wantState: model.HealthHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, alerts := Evaluate(model.NewSample(at, tt.values), tt.thresholds)
			assert.Equal(t, tt.wantState, state)
			if tt.wantOrder == nil {
				assert.Empty(t, alerts)
				return
			}
			assert.Equal(t, tt.wantOrder, metrics(alerts))
		})
	}
}

func TestEvaluate_EventFields(t *testing.T) {
	_, alerts := Evaluate(model.NewSample(at, map[string]float64{"cpu": 95}), model.Thresholds{"cpu": 80})
	require.Len(t, alerts, 1)

	ev := alerts[0]
	assert.Equal(t, at, ev.Timestamp)
	assert.Equal(t, "cpu", ev.Metric)
	assert.Equal(t, 95.0, ev.Value)
	assert.Equal(t, 80.0, ev.Threshold)
	assert.Equal(t, model.AlertReactive, ev.Kind)
	assert.Empty(t, ev.ID)
	assert.Equal(t, "cpu 95.00 > 80.00", ev.String())
}

func TestEvaluate_Concurrent(t *testing.T) {
	sample := model.NewSample(at, map[string]float64{"cpu": 90, "memory": 95})
	thresholds := model.Thresholds{"cpu": 80, "memory": 80}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, alerts := Evaluate(sample, thresholds)
			assert.Equal(t, model.HealthWarning, state)
			assert.Equal(t, []string{"memory", "cpu"}, metrics(alerts))
		}()
	}
	wg.Wait()
}

func TestEvaluateForecast(t *testing.T) {
	forecast := model.Forecast{
		Sample:     model.NewSample(at.Add(5*time.Minute), map[string]float64{"cpu": 70, "disk": 92}),
		Confidence: 64.5,
	}
	alerts := EvaluateForecast(forecast, model.Thresholds{"cpu": 80, "disk": 85}, 5*time.Minute)
	require.Len(t, alerts, 1)

	ev := alerts[0]
	assert.Equal(t, "disk", ev.Metric)
	assert.True(t, ev.Predictive())
	assert.Equal(t, 64.5, ev.Confidence)
	assert.Equal(t, int64(300), ev.WindowSeconds)
	assert.Equal(t, "disk predicted 92.00 > 85.00 in 300s (confidence 64.5%)", ev.String())
}
